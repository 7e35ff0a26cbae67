package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/dgnsrekt/textcast-go/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withChannelsEndpoint points discordgo's channel routes at srv.
func withChannelsEndpoint(t *testing.T, srv *httptest.Server) {
	t.Helper()
	prev := discordgo.EndpointChannels
	discordgo.EndpointChannels = srv.URL + "/channels/"
	t.Cleanup(func() { discordgo.EndpointChannels = prev })
}

func TestCaption(t *testing.T) {
	job := queue.NewPublishJob("req-1", "speech", "audio.mp3", "audio/mpeg", make([]byte, 2048), 0)
	got := Caption(job)
	for _, want := range []string{"speech ready", "audio.mp3", "2.0 kB", "req-1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Caption() = %q, missing %q", got, want)
		}
	}

	job.Message = "custom"
	if Caption(job) != "custom" {
		t.Errorf("Caption() should prefer job.Message")
	}
}

func TestPublisher_Publish(t *testing.T) {
	var gotFile, gotName, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/channels/chan-1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Fatalf("parse content type: %v", err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FileName() != "" {
				gotName = part.FileName()
				data, _ := io.ReadAll(part)
				gotFile = string(data)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1","channel_id":"chan-1"}`))
	}))
	defer srv.Close()
	withChannelsEndpoint(t, srv)

	p, err := NewPublisher("token", "chan-1", testLogger())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()

	job := queue.NewPublishJob("req-1", "speech", "audio.mp3", "audio/mpeg", []byte("ID3mp3"), 0)
	if err := p.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if gotAuth != "Bot token" {
		t.Errorf("Authorization = %q, want Bot token", gotAuth)
	}
	if gotName != "audio.mp3" || gotFile != "ID3mp3" {
		t.Errorf("attachment = %s %q", gotName, gotFile)
	}
}

func TestPublisher_Publish_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Missing Permissions","code":50013}`))
	}))
	defer srv.Close()
	withChannelsEndpoint(t, srv)

	p, err := NewPublisher("token", "chan-1", testLogger())
	if err != nil {
		t.Fatal(err)
	}

	err = p.Publish(context.Background(), queue.NewPublishJob("req-1", "video", "video.mp4", "video/mp4", []byte("x"), 0))
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
}

func TestPublisher_Publish_TooLarge(t *testing.T) {
	p, err := NewPublisher("token", "chan-1", testLogger())
	if err != nil {
		t.Fatal(err)
	}

	job := queue.NewPublishJob("req-1", "video", "video.mp4", "video/mp4", make([]byte, MaxUploadBytes+1), 0)
	if err := p.Publish(context.Background(), job); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
