package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort    int    `yaml:"http_port"`
	BearerToken string `yaml:"bearer_token"`

	// Pipeline limits
	MaxTextLength  int `yaml:"max_text_length"`
	MaxChunkLength int `yaml:"max_chunk_length"`

	// Fetch pool settings
	FetchConcurrency  int           `yaml:"fetch_concurrency"`
	FetchRateLimit    float64       `yaml:"fetch_rate_limit"`
	FetchRetries      int           `yaml:"fetch_retries"`
	FetchRetryInitial time.Duration `yaml:"fetch_retry_initial"`

	// TTS settings
	TTSEngine       string        `yaml:"tts_engine"`
	TTSHost         string        `yaml:"tts_host"`
	TTSCommand      string        `yaml:"tts_command"`
	TTSTimeout      time.Duration `yaml:"tts_timeout"`
	TTSCacheSize    int           `yaml:"tts_cache_size"`
	DefaultLanguage string        `yaml:"default_language"`

	// Media settings
	FFmpegCommand     string        `yaml:"ffmpeg_command"`
	WorkDir           string        `yaml:"work_dir"`
	StaleWorkspaceAge time.Duration `yaml:"stale_workspace_age"`

	// Integrations
	HistoryPath          string        `yaml:"history_path"`
	NATSURL              string        `yaml:"nats_url"`
	NATSSubjectPrefix    string        `yaml:"nats_subject_prefix"`
	DiscordToken         string        `yaml:"discord_token"`
	DiscordChannelID     string        `yaml:"discord_channel_id"`
	PublishQueueCapacity int           `yaml:"publish_queue_capacity"`
	PublishTTL           time.Duration `yaml:"publish_ttl"`

	// Telemetry settings
	TelemetryEnabled bool   `yaml:"telemetry_enabled"`
	OTLPEndpoint     string `yaml:"otlp_endpoint"`
	OTLPInsecure     bool   `yaml:"otlp_insecure"`
	TraceStdout      bool   `yaml:"trace_stdout"`
	ServiceName      string `yaml:"service_name"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTPPort: 8080,

		MaxTextLength:  200000,
		MaxChunkLength: 200,

		FetchConcurrency:  6,
		FetchRetryInitial: 500 * time.Millisecond,

		TTSEngine:       "google",
		TTSHost:         "https://translate.google.com",
		TTSTimeout:      30 * time.Second,
		DefaultLanguage: "pt-BR",

		FFmpegCommand:     "ffmpeg",
		WorkDir:           os.TempDir(),
		StaleWorkspaceAge: time.Hour,

		NATSSubjectPrefix:    "textcast",
		PublishQueueCapacity: 16,
		PublishTTL:           10 * time.Minute,

		TelemetryEnabled: true,
		OTLPInsecure:     true,
		ServiceName:      "textcast",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads configuration from an optional YAML file, an optional .env
// file and the environment, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TEXTCAST_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is fine; variables already set in the environment win.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)

	c.MaxTextLength = getEnvInt("MAX_TEXT_LENGTH", c.MaxTextLength)
	c.MaxChunkLength = getEnvInt("MAX_CHUNK_LENGTH", c.MaxChunkLength)

	c.FetchConcurrency = getEnvInt("FETCH_CONCURRENCY", c.FetchConcurrency)
	c.FetchRateLimit = getEnvFloat("FETCH_RATE_LIMIT", c.FetchRateLimit)
	c.FetchRetries = getEnvInt("FETCH_RETRIES", c.FetchRetries)
	c.FetchRetryInitial = getEnvDuration("FETCH_RETRY_INITIAL", c.FetchRetryInitial)

	c.TTSEngine = getEnvString("TTS_ENGINE", c.TTSEngine)
	c.TTSHost = getEnvString("TTS_HOST", c.TTSHost)
	c.TTSCommand = getEnvString("TTS_COMMAND", c.TTSCommand)
	c.TTSTimeout = getEnvDuration("TTS_TIMEOUT", c.TTSTimeout)
	c.TTSCacheSize = getEnvInt("TTS_CACHE_SIZE", c.TTSCacheSize)
	c.DefaultLanguage = getEnvString("DEFAULT_LANGUAGE", c.DefaultLanguage)

	c.FFmpegCommand = getEnvString("FFMPEG_COMMAND", c.FFmpegCommand)
	c.WorkDir = getEnvString("WORK_DIR", c.WorkDir)
	c.StaleWorkspaceAge = getEnvDuration("STALE_WORKSPACE_AGE", c.StaleWorkspaceAge)

	c.HistoryPath = getEnvString("HISTORY_PATH", c.HistoryPath)
	c.NATSURL = getEnvString("NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = getEnvString("NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)
	c.DiscordToken = getEnvString("DISCORD_TOKEN", c.DiscordToken)
	c.DiscordChannelID = getEnvString("DISCORD_CHANNEL_ID", c.DiscordChannelID)
	c.PublishQueueCapacity = getEnvInt("PUBLISH_QUEUE_CAPACITY", c.PublishQueueCapacity)
	c.PublishTTL = getEnvDuration("PUBLISH_TTL", c.PublishTTL)

	c.TelemetryEnabled = getEnvBool("TELEMETRY_ENABLED", c.TelemetryEnabled)
	c.OTLPEndpoint = getEnvString("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.OTLPInsecure = getEnvBool("OTLP_INSECURE", c.OTLPInsecure)
	c.TraceStdout = getEnvBool("TRACE_STDOUT", c.TraceStdout)
	c.ServiceName = getEnvString("SERVICE_NAME", c.ServiceName)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// DiscordEnabled returns true when finished artifacts should be posted to Discord.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.MaxChunkLength < 1 {
		return errors.New("MAX_CHUNK_LENGTH must be at least 1")
	}

	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}

	if c.FetchRateLimit < 0 {
		return errors.New("FETCH_RATE_LIMIT must be non-negative")
	}

	if c.FetchRetries < 0 {
		return errors.New("FETCH_RETRIES must be non-negative")
	}

	if c.FetchRetries > 0 && c.FetchRetryInitial <= 0 {
		return errors.New("FETCH_RETRY_INITIAL must be positive when FETCH_RETRIES is set")
	}

	switch c.TTSEngine {
	case "google":
		if c.TTSHost == "" {
			return errors.New("TTS_HOST cannot be empty when TTS_ENGINE=google")
		}
	case "exec":
		if c.TTSCommand == "" {
			return errors.New("TTS_COMMAND must be set when TTS_ENGINE=exec")
		}
	case "silence":
	default:
		return errors.New("TTS_ENGINE must be one of: google, exec, silence")
	}

	if c.TTSTimeout <= 0 {
		return errors.New("TTS_TIMEOUT must be positive")
	}

	if c.TTSCacheSize < 0 {
		return errors.New("TTS_CACHE_SIZE must be non-negative")
	}

	if c.FFmpegCommand == "" {
		return errors.New("FFMPEG_COMMAND cannot be empty")
	}

	if c.WorkDir == "" {
		return errors.New("WORK_DIR cannot be empty")
	}

	if c.StaleWorkspaceAge < 0 {
		return errors.New("STALE_WORKSPACE_AGE must be non-negative")
	}

	if c.PublishQueueCapacity < 1 {
		return errors.New("PUBLISH_QUEUE_CAPACITY must be at least 1")
	}

	if c.PublishTTL < 0 {
		return errors.New("PUBLISH_TTL must be non-negative")
	}

	if c.TelemetryEnabled && c.ServiceName == "" {
		return errors.New("SERVICE_NAME cannot be empty when telemetry is enabled")
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

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as a float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
