package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// GoogleMaxTextLength is the longest text the translate_tts endpoint accepts per call.
const GoogleMaxTextLength = 200

// ErrTextTooLong is returned when a request exceeds the engine's per-call limit.
var ErrTextTooLong = errors.New("text exceeds engine limit")

// GoogleConfig holds configuration for the Google Translate TTS engine.
type GoogleConfig struct {
	// Host is the scheme and host serving /translate_tts.
	Host string
	// Timeout bounds a single synthesis call.
	Timeout time.Duration
	// Slow requests the slower speaking rate.
	Slow bool
}

// GoogleEngine implements Engine using the public Google Translate TTS endpoint.
type GoogleEngine struct {
	config GoogleConfig
	client *http.Client
	logger *slog.Logger
}

// NewGoogleEngine creates a new Google Translate TTS engine.
func NewGoogleEngine(cfg GoogleConfig, logger *slog.Logger) *GoogleEngine {
	if cfg.Host == "" {
		cfg.Host = "https://translate.google.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GoogleEngine{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the engine identifier.
func (g *GoogleEngine) Name() string {
	return "google"
}

// AudioURL builds the translate_tts URL for text in language.
func (g *GoogleEngine) AudioURL(text, language string) string {
	speed := "1"
	if g.config.Slow {
		speed = "0.24"
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", language)
	q.Set("total", "1")
	q.Set("idx", "0")
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", speed)

	return strings.TrimSuffix(g.config.Host, "/") + "/translate_tts?" + q.Encode()
}

// Synthesize fetches MP3 audio for req.Text.
func (g *GoogleEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if err := checkRequest(ctx, req); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(req.Text); n > GoogleMaxTextLength {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrTextTooLong, n, GoogleMaxTextLength)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.AudioURL(req.Text, req.Language), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; textcast)")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrSynthesisFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrSynthesisFailed)
	}

	g.logger.Debug("google tts segment fetched",
		"language", req.Language,
		"text_length", utf8.RuneCountInString(req.Text),
		"bytes", len(data),
	)

	return &AudioResult{Data: data, Format: "mp3"}, nil
}

// StatusError reports a non-success HTTP response from an upstream engine.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("TTS synthesis failed: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("TTS synthesis failed: upstream status %d: %s", e.StatusCode, e.Body)
}

// Is makes StatusError match ErrSynthesisFailed.
func (e *StatusError) Is(target error) bool {
	return target == ErrSynthesisFailed
}

// Temporary reports whether retrying the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
