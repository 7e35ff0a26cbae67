package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/textcast-go/internal/audio"
	"github.com/dgnsrekt/textcast-go/internal/events"
	"github.com/dgnsrekt/textcast-go/internal/fetch"
	"github.com/dgnsrekt/textcast-go/internal/history"
	"github.com/dgnsrekt/textcast-go/internal/queue"
	"github.com/dgnsrekt/textcast-go/internal/tts"
	"github.com/dgnsrekt/textcast-go/internal/video"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

// fakeEngine returns the chunk text as audio and fails on chunks containing
// failOn.
type fakeEngine struct {
	failOn string
	calls  atomic.Int32
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (*tts.AudioResult, error) {
	f.calls.Add(1)
	if f.failOn != "" && strings.Contains(req.Text, f.failOn) {
		return nil, tts.ErrSynthesisFailed
	}
	return &tts.AudioResult{Data: []byte(req.Language + "|" + req.Text), Format: "mp3"}, nil
}

// fakeEncoder writes a fixed payload to the output path.
type fakeEncoder struct {
	calls atomic.Int32
}

func (f *fakeEncoder) Encode(ctx context.Context, args []string) error {
	f.calls.Add(1)
	return os.WriteFile(args[len(args)-1], []byte("encoded"), 0o600)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) Close() {}

type harness struct {
	p       *Pipeline
	engine  *fakeEngine
	encoder *fakeEncoder
	events  *recordingPublisher
	history *history.Store
	queue   *queue.Queue
	ws      *workspace.Workspace
	logs    *logBuffer
}

// logBuffer collects log output written from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness(t *testing.T, engine *fakeEngine) *harness {
	t.Helper()
	logs := &logBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ws, err := workspace.NewManager(t.TempDir(), logger).Acquire()
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		engine:  engine,
		encoder: &fakeEncoder{},
		events:  &recordingPublisher{},
		history: store,
		queue:   queue.NewQueue(4, logger),
		ws:      ws,
		logs:    logs,
	}
	h.p = New(Deps{
		Engine:  h.engine,
		Encoder: h.encoder,
		Fetch:   fetch.Options{Concurrency: 3},
		Limits:  Limits{MaxTextLength: 1000, MaxChunkLength: 40},
		History: store,
		Events:  h.events,
		Publish: h.queue,
		Logger:  logger,
	})
	return h
}

func TestPipeline_Speech_HelloWorld(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	res, err := h.p.Speech(context.Background(), h.ws, SpeechRequest{RequestID: "req-1", Text: "Hello world.", Speed: 1})
	if err != nil {
		t.Fatalf("Speech() error = %v", err)
	}

	if res.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", res.Chunks)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].State != fetch.Done {
		t.Errorf("Jobs = %+v, want one done job", res.Jobs)
	}
	if len(res.Artifact.Data) == 0 || res.Artifact.ContentType != audio.ContentType {
		t.Errorf("unexpected artifact %+v", res.Artifact)
	}

	manifest, err := os.ReadFile(h.ws.Path(audio.ManifestName))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if n := strings.Count(string(manifest), "file '"); n != 1 {
		t.Errorf("manifest has %d entries, want 1", n)
	}

	seg, err := os.ReadFile(h.ws.Path("part-00000.mp3"))
	if err != nil || string(seg) != "pt-BR|Hello world." {
		t.Errorf("segment = %q, %v; want default language pt-BR", seg, err)
	}

	runs, _ := h.history.Recent(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != StatusOK || runs[0].Chunks != 1 || runs[0].TextChars != 12 {
		t.Errorf("history = %+v", runs)
	}
	if len(h.events.events) != 1 || h.events.events[0].Status != events.StatusCompleted {
		t.Errorf("events = %+v", h.events.events)
	}
	if h.queue.Len() != 1 {
		t.Errorf("publish queue length = %d, want 1", h.queue.Len())
	}
}

func TestPipeline_Speech_ManyChunksInOrder(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	input := "First sentence is here. Second one follows it. Third closes the paragraph, with a clause. Fourth!"
	res, err := h.p.Speech(context.Background(), h.ws, SpeechRequest{Text: input, Language: "en"})
	if err != nil {
		t.Fatalf("Speech() error = %v", err)
	}
	if res.Chunks < 3 {
		t.Fatalf("Chunks = %d, want several", res.Chunks)
	}
	if res.RequestID == "" {
		t.Error("expected a generated request ID")
	}

	manifest, _ := os.ReadFile(h.ws.Path(audio.ManifestName))
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	if len(lines) != res.Chunks {
		t.Fatalf("manifest has %d lines, want %d", len(lines), res.Chunks)
	}

	var spoken []string
	for i, line := range lines {
		if !strings.HasSuffix(line, fmt.Sprintf("part-%05d.mp3'", i)) {
			t.Errorf("manifest line %d = %s", i, line)
		}
		data, err := os.ReadFile(res.Jobs[i].ResultPath)
		if err != nil {
			t.Fatal(err)
		}
		spoken = append(spoken, strings.TrimPrefix(string(data), "en|"))
	}
	if got := strings.Join(spoken, " "); got != input {
		t.Errorf("reassembled text = %q, want %q", got, input)
	}
}

func TestPipeline_Speech_RejectsWhitespace(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	_, err := h.p.Speech(context.Background(), h.ws, SpeechRequest{Text: "   \n\t  "})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if h.engine.calls.Load() != 0 {
		t.Error("no chunk should be fetched for invalid input")
	}
	if h.encoder.calls.Load() != 0 {
		t.Error("encoder should not run for invalid input")
	}

	runs, _ := h.history.Recent(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != StatusInvalid {
		t.Errorf("history = %+v", runs)
	}
	if len(h.events.events) != 0 {
		t.Errorf("validation failures should not emit events: %+v", h.events.events)
	}
}

func TestPipeline_Speech_TooLong(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	_, err := h.p.Speech(context.Background(), h.ws, SpeechRequest{Text: strings.Repeat("a", 1001)})
	if !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}
	if h.engine.calls.Load() != 0 {
		t.Error("no chunk should be fetched for oversized input")
	}
}

func TestPipeline_Speech_FailFast(t *testing.T) {
	h := newHarness(t, &fakeEngine{failOn: "broken"})

	input := "One fine sentence here. This one is broken badly. Another sentence after it."
	res, err := h.p.Speech(context.Background(), h.ws, SpeechRequest{Text: input})
	if res != nil {
		t.Error("expected no result on fetch failure")
	}
	if !errors.Is(err, fetch.ErrFetchFailed) || !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Fatalf("expected ErrFetchFailed wrapping ErrSynthesisFailed, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Error("fetch failures must not look like validation errors")
	}
	if h.encoder.calls.Load() != 0 {
		t.Error("assembly must not run after a fetch failure")
	}

	if len(h.events.events) != 1 || h.events.events[0].Status != events.StatusFailed {
		t.Errorf("events = %+v", h.events.events)
	}
	if h.queue.Len() != 0 {
		t.Error("failed runs must not be published")
	}
	runs, _ := h.history.Recent(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != StatusError || runs[0].Error == "" {
		t.Errorf("history = %+v", runs)
	}
}

func TestPipeline_Video(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	res, err := h.p.Video(context.Background(), h.ws, VideoRequest{
		RequestID: "vid-1",
		Audio:     []byte("ID3"),
		Title:     "not rendered",
	})
	if err != nil {
		t.Fatalf("Video() error = %v", err)
	}
	if res.Artifact.ContentType != video.ContentType || len(res.Artifact.Data) == 0 {
		t.Errorf("unexpected artifact %+v", res.Artifact)
	}
	if h.queue.Len() != 1 {
		t.Errorf("publish queue length = %d, want 1", h.queue.Len())
	}
	if !strings.Contains(h.logs.String(), `"title":"not rendered"`) {
		t.Errorf("title missing from logs:\n%s", h.logs.String())
	}
}

func TestPipeline_Video_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  VideoRequest
		want error
	}{
		{"missing audio", VideoRequest{}, ErrMissingAudio},
		{"bad color", VideoRequest{Audio: []byte("a"), BackgroundColor: "red:s=9999x9999"}, ErrInvalidColor},
		{"bad resolution", VideoRequest{Audio: []byte("a"), Width: 0, Height: 720}, ErrInvalidResolution},
		{"too wide", VideoRequest{Audio: []byte("a"), Width: 10000, Height: 720}, ErrInvalidResolution},
		{"odd width", VideoRequest{Audio: []byte("a"), Width: 1281, Height: 720}, ErrInvalidResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeEngine{})
			_, err := h.p.Video(context.Background(), h.ws, tt.req)
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrValidation) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if h.encoder.calls.Load() != 0 {
				t.Error("encoder should not run for invalid input")
			}
		})
	}
}

func TestPipeline_EngineName(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	if h.p.EngineName() != "fake" {
		t.Errorf("EngineName() = %s", h.p.EngineName())
	}
}
