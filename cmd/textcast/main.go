package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgnsrekt/textcast-go/internal/api"
	"github.com/dgnsrekt/textcast-go/internal/config"
	"github.com/dgnsrekt/textcast-go/internal/discord"
	"github.com/dgnsrekt/textcast-go/internal/events"
	"github.com/dgnsrekt/textcast-go/internal/fetch"
	"github.com/dgnsrekt/textcast-go/internal/history"
	"github.com/dgnsrekt/textcast-go/internal/logging"
	"github.com/dgnsrekt/textcast-go/internal/media"
	"github.com/dgnsrekt/textcast-go/internal/pipeline"
	"github.com/dgnsrekt/textcast-go/internal/queue"
	"github.com/dgnsrekt/textcast-go/internal/telemetry"
	"github.com/dgnsrekt/textcast-go/internal/tts"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

// historyKeep bounds the run history table.
const historyKeep = 10000

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $TEXTCAST_CONFIG)")
	flag.Parse()

	// Load configuration from file, .env and environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting textcast", "version", "0.1.0")

	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"tts_engine", cfg.TTSEngine,
		"default_language", cfg.DefaultLanguage,
		"max_text_length", cfg.MaxTextLength,
		"max_chunk_length", cfg.MaxChunkLength,
		"fetch_concurrency", cfg.FetchConcurrency,
		"fetch_retries", cfg.FetchRetries,
		"work_dir", cfg.WorkDir,
		"discord_enabled", cfg.DiscordEnabled(),
		"nats_enabled", cfg.NATSURL != "",
		"history_enabled", cfg.HistoryPath != "",
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("textcast exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Settings{
		Enabled:      cfg.TelemetryEnabled,
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		StdoutTraces: cfg.TraceStdout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	ffmpeg, err := media.NewFFmpeg(cfg.FFmpegCommand, logger)
	if err != nil {
		return err
	}
	if v, err := ffmpeg.Version(ctx); err == nil {
		logger.Info("ffmpeg found", "path", ffmpeg.Path(), "version", v)
	}

	workspaces := workspace.NewManager(cfg.WorkDir, logger)
	if cfg.StaleWorkspaceAge > 0 {
		if n, err := workspaces.Sweep(cfg.StaleWorkspaceAge); err != nil {
			logger.Warn("failed to sweep stale workspaces", "error", err)
		} else if n > 0 {
			logger.Info("removed stale workspaces", "count", n)
		}
	}

	store, err := history.Open(ctx, cfg.HistoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if n, err := store.Prune(ctx, historyKeep); err != nil {
		logger.Warn("failed to prune run history", "error", err)
	} else if n > 0 {
		logger.Info("pruned run history", "removed", n)
	}

	checks := []api.Check{{
		Name: "ffmpeg",
		Fn: func(ctx context.Context) error {
			_, err := ffmpeg.Version(ctx)
			return err
		},
	}}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, 5*time.Second, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		publisher = nc
		checks = append(checks, api.Check{
			Name: "nats",
			Fn: func(context.Context) error {
				if !nc.Healthy() {
					return errors.New("not connected")
				}
				return nil
			},
		})
	}

	var publishQueue *queue.Queue
	if cfg.DiscordEnabled() {
		publishQueue, err = newPublishQueue(cfg, metrics, logger)
		if err != nil {
			return err
		}
		publishQueue.Start()
		defer publishQueue.Stop()
	} else {
		logger.Info("Discord credentials not configured, artifacts will not be published")
	}

	fetchOpts := fetch.Options{
		Concurrency: cfg.FetchConcurrency,
		Retry: fetch.RetryPolicy{
			MaxRetries: cfg.FetchRetries,
			Initial:    cfg.FetchRetryInitial,
		},
	}
	if cfg.FetchRateLimit > 0 {
		fetchOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), cfg.FetchConcurrency)
	}

	p := pipeline.New(pipeline.Deps{
		Engine:  engine,
		Encoder: ffmpeg,
		Fetch:   fetchOpts,
		Limits: pipeline.Limits{
			MaxTextLength:   cfg.MaxTextLength,
			MaxChunkLength:  cfg.MaxChunkLength,
			DefaultLanguage: cfg.DefaultLanguage,
		},
		History:    store,
		Events:     publisher,
		Publish:    publishQueue,
		PublishTTL: cfg.PublishTTL,
		Metrics:    metrics,
		Tracer:     tel.Tracer,
		Logger:     logger,
	})

	server := api.New(cfg, logger, api.Deps{
		Pipeline:       p,
		Workspaces:     workspaces,
		History:        store,
		Metrics:        metrics,
		MetricsHandler: tel.MetricsHandler,
		Checks:         checks,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// In-flight syntheses get the same budget as a long request.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	return nil
}

// newEngine builds the configured speech engine, optionally behind a cache.
func newEngine(cfg *config.Config, logger *slog.Logger) (tts.Engine, error) {
	registry := tts.DefaultRegistry()
	engine, err := registry.Build(cfg.TTSEngine, tts.Settings{
		Host:      cfg.TTSHost,
		Command:   cfg.TTSCommand,
		Timeout:   cfg.TTSTimeout,
		CacheSize: cfg.TTSCacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("TTS engine ready",
		"engine", engine.Name(),
		"available", registry.Names(),
		"cache_size", cfg.TTSCacheSize,
	)
	return engine, nil
}

// newPublishQueue wires the Discord publisher behind the bounded queue.
func newPublishQueue(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*queue.Queue, error) {
	publisher, err := discord.NewPublisher(cfg.DiscordToken, cfg.DiscordChannelID, logger)
	if err != nil {
		return nil, err
	}

	q := queue.NewQueue(cfg.PublishQueueCapacity, logger)
	q.SetHandler(publisher.Publish)
	q.SetJobCompletedCallback(func(job *queue.PublishJob, err error) {
		outcome := "published"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "cancelled"
		case err != nil:
			outcome = "failed"
		}
		metrics.RecordPublish(context.Background(), outcome)
	})
	q.SetShutdownCallback(func() {
		logger.Info("shutdown: closing Discord session")
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close Discord session", "error", err)
		}
	})
	return q, nil
}
