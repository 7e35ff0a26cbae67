// Package pipeline turns text into narrated audio and audio into video.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dgnsrekt/textcast-go/internal/audio"
	"github.com/dgnsrekt/textcast-go/internal/events"
	"github.com/dgnsrekt/textcast-go/internal/fetch"
	"github.com/dgnsrekt/textcast-go/internal/history"
	"github.com/dgnsrekt/textcast-go/internal/media"
	"github.com/dgnsrekt/textcast-go/internal/queue"
	"github.com/dgnsrekt/textcast-go/internal/telemetry"
	"github.com/dgnsrekt/textcast-go/internal/text"
	"github.com/dgnsrekt/textcast-go/internal/tts"
	"github.com/dgnsrekt/textcast-go/internal/video"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

// Run kinds.
const (
	KindSpeech = "speech"
	KindVideo  = "video"
)

// Run statuses recorded in history and metrics.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Limits bound speech requests.
type Limits struct {
	MaxTextLength   int
	MaxChunkLength  int
	DefaultLanguage string
}

// SpeechRequest asks for text to be narrated.
type SpeechRequest struct {
	RequestID string
	Text      string
	Language  string
	Speed     float64
}

// VideoRequest asks for audio to be rendered over a solid background.
type VideoRequest struct {
	RequestID       string
	Audio           []byte
	BackgroundColor string
	Width           int
	Height          int
	Title           string
}

// Result is a finished artifact plus what it took to make it.
type Result struct {
	RequestID string
	Artifact  *media.Artifact
	Chunks    int
	Jobs      []fetch.Job
}

// Deps are the collaborators of a Pipeline. Engine, Encoder and Logger are
// required; the rest fall back to disabled implementations.
type Deps struct {
	Engine     tts.Engine
	Encoder    media.Encoder
	Fetch      fetch.Options
	Limits     Limits
	History    *history.Store
	Events     events.Publisher
	Publish    *queue.Queue
	PublishTTL time.Duration
	Metrics    *telemetry.Metrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Pipeline runs speech and video requests inside caller-owned workspaces.
type Pipeline struct {
	engine     tts.Engine
	assembler  *audio.Assembler
	video      *video.Synthesizer
	fetchOpts  fetch.Options
	limits     Limits
	history    *history.Store
	events     events.Publisher
	publish    *queue.Queue
	publishTTL time.Duration
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New creates a pipeline from d.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		engine:     d.Engine,
		assembler:  audio.NewAssembler(d.Encoder, d.Logger),
		video:      video.NewSynthesizer(d.Encoder, d.Logger),
		fetchOpts:  d.Fetch,
		limits:     d.Limits,
		history:    d.History,
		events:     d.Events,
		publish:    d.Publish,
		publishTTL: d.PublishTTL,
		metrics:    d.Metrics,
		tracer:     d.Tracer,
		logger:     d.Logger,
	}
	if p.events == nil {
		p.events = events.Nop{}
	}
	if p.tracer == nil {
		p.tracer = noop.NewTracerProvider().Tracer(telemetry.InstrumentationName)
	}
	if p.limits.DefaultLanguage == "" {
		p.limits.DefaultLanguage = "pt-BR"
	}
	return p
}

// EngineName returns the speech engine in use.
func (p *Pipeline) EngineName() string {
	return p.engine.Name()
}

// Speech validates req, chunks the text, fetches every chunk and assembles
// one MP3. Validation happens before any chunk is fetched.
func (p *Pipeline) Speech(ctx context.Context, ws *workspace.Workspace, req SpeechRequest) (*Result, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = p.limits.DefaultLanguage
	}
	logger := p.logger.With("request_id", req.RequestID, "kind", KindSpeech)

	ctx, span := p.tracer.Start(ctx, "pipeline.speech",
		trace.WithAttributes(attribute.String("request_id", req.RequestID), attribute.String("language", lang)))
	defer span.End()

	run := history.Run{ID: req.RequestID, Kind: KindSpeech, Language: lang}
	res, err := p.speech(ctx, ws, req, lang, &run, logger)
	p.finish(ctx, span, run, res, err, start, logger)
	return res, err
}

func (p *Pipeline) speech(ctx context.Context, ws *workspace.Workspace, req SpeechRequest, lang string, run *history.Run, logger *slog.Logger) (*Result, error) {
	body, err := ValidateText(req.Text, p.limits.MaxTextLength)
	if err != nil {
		return nil, err
	}
	run.TextChars = utf8.RuneCountInString(body)

	chunks := text.Split(body, p.limits.MaxChunkLength)
	if len(chunks) == 0 {
		return nil, ErrNothingToSynthesize
	}
	run.Chunks = len(chunks)
	if p.metrics != nil {
		p.metrics.RecordChunks(ctx, len(chunks))
	}

	speed := ClampSpeed(req.Speed)
	logger.Info("speech request accepted",
		"chars", run.TextChars,
		"chunks", len(chunks),
		"language", lang,
		"speed", speed,
		"engine", p.engine.Name(),
	)

	pool := fetch.NewPool(p.fetchOpts, logger)
	segments, err := pool.Run(ctx, ws, chunks, func(ctx context.Context, c text.Chunk) ([]byte, string, error) {
		res, err := p.engine.Synthesize(ctx, tts.SynthesizeRequest{Text: c.Content, Language: lang})
		if err != nil {
			return nil, "", err
		}
		return res.Data, res.Format, nil
	})
	jobs := pool.Jobs()
	p.recordJobs(ctx, jobs)
	if err != nil {
		return nil, err
	}

	art, err := p.assembler.Assemble(ctx, ws, segments, speed)
	if err != nil {
		return nil, err
	}

	return &Result{RequestID: req.RequestID, Artifact: art, Chunks: len(chunks), Jobs: jobs}, nil
}

// Video validates req and renders the audio over a solid color track.
func (p *Pipeline) Video(ctx context.Context, ws *workspace.Workspace, req VideoRequest) (*Result, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	logger := p.logger.With("request_id", req.RequestID, "kind", KindVideo)

	ctx, span := p.tracer.Start(ctx, "pipeline.video",
		trace.WithAttributes(attribute.String("request_id", req.RequestID)))
	defer span.End()

	run := history.Run{ID: req.RequestID, Kind: KindVideo}
	res, err := p.videoRun(ctx, ws, req, logger)
	p.finish(ctx, span, run, res, err, start, logger)
	return res, err
}

func (p *Pipeline) videoRun(ctx context.Context, ws *workspace.Workspace, req VideoRequest, logger *slog.Logger) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, ErrMissingAudio
	}
	bg := strings.TrimSpace(req.BackgroundColor)
	if bg == "" {
		bg = video.DefaultBackground
	}
	if !video.ValidColor(bg) {
		return nil, ErrInvalidColor
	}
	if req.Width == 0 && req.Height == 0 {
		req.Width, req.Height = video.DefaultWidth, video.DefaultHeight
	}
	if !video.ValidSize(req.Width, req.Height) {
		return nil, ErrInvalidResolution
	}

	logger.Info("video request accepted",
		"title", req.Title,
		"audio_bytes", len(req.Audio),
		"audio_size", humanize.Bytes(uint64(len(req.Audio))),
		"background", bg,
		"width", req.Width,
		"height", req.Height,
	)

	art, err := p.video.Synthesize(ctx, ws, video.Request{
		Audio:           req.Audio,
		BackgroundColor: bg,
		Width:           req.Width,
		Height:          req.Height,
		Title:           req.Title,
	})
	if err != nil {
		return nil, err
	}
	return &Result{RequestID: req.RequestID, Artifact: art}, nil
}

func (p *Pipeline) recordJobs(ctx context.Context, jobs []fetch.Job) {
	if p.metrics == nil {
		return
	}
	for _, j := range jobs {
		if j.Attempts > 0 {
			p.metrics.RecordFetch(ctx, j.State.String(), j.Attempts)
		}
	}
}

// finish records the outcome everywhere it is observed. None of these side
// effects can fail the request.
func (p *Pipeline) finish(ctx context.Context, span trace.Span, run history.Run, res *Result, err error, start time.Time, logger *slog.Logger) {
	elapsed := time.Since(start)
	run.DurationMS = elapsed.Milliseconds()
	run.Status = StatusOK
	if res != nil && res.Artifact != nil {
		run.OutputBytes = len(res.Artifact.Data)
	}

	switch {
	case err == nil:
		logger.Info("run completed",
			"duration_ms", run.DurationMS,
			"bytes", run.OutputBytes,
			"size", humanize.Bytes(uint64(run.OutputBytes)),
		)
	case errors.Is(err, ErrValidation):
		run.Status = StatusInvalid
		run.Error = err.Error()
		logger.Info("request rejected", "error", err)
	default:
		run.Status = StatusError
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", "error", err, "duration_ms", run.DurationMS)
	}

	// Side effects outlive a cancelled request context.
	bg := context.WithoutCancel(ctx)

	if p.metrics != nil {
		p.metrics.RecordRun(bg, run.Kind, run.Status, elapsed, run.OutputBytes)
	}

	if p.history != nil {
		if herr := p.history.Record(bg, run); herr != nil {
			logger.Warn("history record failed", "error", herr)
		}
	}

	if run.Status == StatusInvalid {
		return
	}

	status := events.StatusCompleted
	if err != nil {
		status = events.StatusFailed
	}
	if perr := p.events.Publish(bg, events.Event{
		RequestID:   run.ID,
		Kind:        run.Kind,
		Status:      status,
		Language:    run.Language,
		Chunks:      run.Chunks,
		OutputBytes: run.OutputBytes,
		DurationMS:  run.DurationMS,
		Error:       run.Error,
	}); perr != nil {
		logger.Warn("event publish failed", "error", perr)
	}

	if err == nil && p.publish != nil {
		p.enqueue(run, res, logger)
	}
}

func (p *Pipeline) enqueue(run history.Run, res *Result, logger *slog.Logger) {
	filename := "audio.mp3"
	if run.Kind == KindVideo {
		filename = "video.mp4"
	}
	job := queue.NewPublishJob(run.ID, run.Kind, filename, res.Artifact.ContentType, res.Artifact.Data, p.publishTTL)
	if err := p.publish.Enqueue(job); err != nil {
		logger.Warn("artifact not queued for publishing", "error", err)
	}
}
