package tts

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/textcast-go/internal/wav"
)

const (
	silencePerRune    = 60 * time.Millisecond
	silenceMinimum    = 200 * time.Millisecond
	silenceEngineName = "silence"
)

// SilenceEngine emits silent WAV audio sized to the text. It needs no network
// or binaries, which makes it useful for dry runs and tests.
type SilenceEngine struct {
	format wav.Format
}

// NewSilenceEngine creates a silence engine using the speech WAV layout.
func NewSilenceEngine() *SilenceEngine {
	return &SilenceEngine{format: wav.Speech}
}

// Name returns the engine identifier.
func (e *SilenceEngine) Name() string {
	return silenceEngineName
}

// Synthesize returns silence lasting 60ms per rune, at least 200ms.
func (e *SilenceEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if err := checkRequest(ctx, req); err != nil {
		return nil, err
	}

	return &AudioResult{
		Data:   wav.Silence(SilenceDuration(req.Text), e.format),
		Format: "wav",
	}, nil
}

// SilenceDuration reports how long the silence engine's output for text lasts.
func SilenceDuration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * silencePerRune
	if d < silenceMinimum {
		d = silenceMinimum
	}
	return d
}
