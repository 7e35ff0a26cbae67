package client

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds textcast CLI configuration.
type Config struct {
	// Service settings
	BaseURL string
	Token   string

	// Transport settings
	Timeout      time.Duration
	MaxRetries   int
	RetryInitial time.Duration

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads client configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL: getEnvString("TEXTCAST_URL", "http://localhost:8080"),
		Token:   os.Getenv("TEXTCAST_TOKEN"),

		Timeout:      getEnvDuration("TEXTCAST_TIMEOUT", 10*time.Minute),
		MaxRetries:   getEnvInt("TEXTCAST_RETRIES", 3),
		RetryInitial: getEnvDuration("TEXTCAST_RETRY_INITIAL", 500*time.Millisecond),

		LogLevel:  getEnvString("LOG_LEVEL", "warn"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("TEXTCAST_URL cannot be empty")
	}

	if c.Timeout <= 0 {
		return errors.New("TEXTCAST_TIMEOUT must be positive")
	}

	if c.MaxRetries < 0 {
		return errors.New("TEXTCAST_RETRIES must be non-negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true, "auto": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json, auto")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
