package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/textcast-go/internal/wav"
)

func TestSilenceDuration(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"a", 200 * time.Millisecond},
		{"Hello world.", 720 * time.Millisecond},
		{"ção", 200 * time.Millisecond},
		{"ãããããããããã", 600 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := SilenceDuration(tt.text); got != tt.want {
			t.Errorf("SilenceDuration(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSilenceEngine_Synthesize(t *testing.T) {
	e := NewSilenceEngine()
	if e.Name() != "silence" {
		t.Errorf("Name() = %s, want silence", e.Name())
	}

	res, err := e.Synthesize(context.Background(), SynthesizeRequest{Text: "Hello world.", Language: "en"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Format != "wav" {
		t.Errorf("Format = %s, want wav", res.Format)
	}

	got, err := wav.Duration(res.Data)
	if err != nil {
		t.Fatalf("wav.Duration() error = %v", err)
	}
	if diff := got - 720*time.Millisecond; diff < -5*time.Millisecond || diff > 5*time.Millisecond {
		t.Errorf("duration = %v, want ~720ms", got)
	}
}

func TestSilenceEngine_Errors(t *testing.T) {
	e := NewSilenceEngine()

	if _, err := e.Synthesize(context.Background(), SynthesizeRequest{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Synthesize(ctx, SynthesizeRequest{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
