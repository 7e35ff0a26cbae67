// Package tts turns short pieces of text into encoded audio.
package tts

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyText is returned when an engine is asked to synthesize nothing.
	ErrEmptyText = errors.New("empty text")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
)

// SynthesizeRequest is one chunk of text in one language.
type SynthesizeRequest struct {
	Text     string
	Language string
}

// AudioResult is the encoded audio for one request.
type AudioResult struct {
	Data []byte
	// Format is the file extension of Data, e.g. "mp3" or "wav".
	Format string
}

// Engine synthesizes speech. Implementations must be safe for concurrent
// use; the fetch pool calls Synthesize from several goroutines.
type Engine interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	Name() string
}

// checkRequest rejects blank text and finished contexts before any work.
func checkRequest(ctx context.Context, req SynthesizeRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return ctx.Err()
}
