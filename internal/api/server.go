package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/textcast-go/internal/config"
	"github.com/dgnsrekt/textcast-go/internal/history"
	"github.com/dgnsrekt/textcast-go/internal/pipeline"
	"github.com/dgnsrekt/textcast-go/internal/telemetry"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

const (
	// minSpeechBody is the smallest JSON body limit for speech requests.
	minSpeechBody = 1 << 20
	// maxEscapedRuneBytes is the longest JSON encoding of one character,
	// a surrogate pair written as two \uXXXX escapes.
	maxEscapedRuneBytes = 12
	// speechBodyOverhead covers the keys and other fields of the body.
	speechBodyOverhead = 64 << 10
	// maxVideoBody bounds the multipart body of a video request.
	maxVideoBody = 200 << 20
	// multipartMemory is how much of an upload is kept in memory before
	// spilling to disk.
	multipartMemory = 32 << 20
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Pipeline       *pipeline.Pipeline
	Workspaces     *workspace.Manager
	History        *history.Store
	Metrics        *telemetry.Metrics
	MetricsHandler http.Handler
	Checks         []Check
}

// Server handles HTTP API requests.
type Server struct {
	cfg            *config.Config
	logger         *slog.Logger
	server         *http.Server
	pipeline       *pipeline.Pipeline
	workspaces     *workspace.Manager
	history        *history.Store
	metrics        *telemetry.Metrics
	metricsHandler http.Handler
	checks         []Check
	speechBody     int64
}

// speechBodyLimit bounds a speech body so that maxText characters fit even
// when every one of them is \u-escaped.
func speechBodyLimit(maxText int) int64 {
	return max(minSpeechBody, int64(maxText)*maxEscapedRuneBytes+speechBodyOverhead)
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, d Deps) *Server {
	s := &Server{
		cfg:            cfg,
		logger:         logger,
		pipeline:       d.Pipeline,
		workspaces:     d.Workspaces,
		history:        d.History,
		metrics:        d.Metrics,
		metricsHandler: d.MetricsHandler,
		checks:         d.Checks,
		speechBody:     speechBodyLimit(cfg.MaxTextLength),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/readyz", s.handleReadyz)
	mux.HandleFunc("GET /v1/history", s.withAuth(s.handleHistory))

	for _, path := range []string{"/v1/speech", "/speech"} {
		mux.HandleFunc("POST "+path, s.withAuth(s.handleSpeech))
	}
	for _, path := range []string{"/v1/video", "/video"} {
		mux.HandleFunc("POST "+path, s.withAuth(s.handleVideo))
	}

	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	// Synthesis of long texts and video encoding take minutes, so write
	// and read deadlines are generous; headers still have to arrive fast.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           s.withRequestID(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// acquire creates a workspace for one request.
func (s *Server) acquire(ctx context.Context) (*workspace.Workspace, error) {
	ws, err := s.workspaces.Acquire()
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.WorkspaceOpened(ctx)
	}
	return ws, nil
}

// release removes a workspace. Called via defer once the response is out.
func (s *Server) release(ctx context.Context, ws *workspace.Workspace) {
	s.workspaces.Release(ws)
	if s.metrics != nil {
		s.metrics.WorkspaceClosed(context.WithoutCancel(ctx))
	}
}
