package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// SpeechParams describes a narration request.
type SpeechParams struct {
	Text     string
	Language string
	Speed    float64
}

// VideoParams describes a video rendering request.
type VideoParams struct {
	Audio           []byte
	Filename        string
	BackgroundColor string
	Resolution      string
	Title           string
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code      int
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("textcast: status %d: %s (request %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("textcast: status %d: %s", e.Code, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client talks to a textcast service.
type Client struct {
	cfg        *Config
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a new client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Speech narrates text and returns the MP3 bytes.
func (c *Client) Speech(ctx context.Context, p SpeechParams) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text     string  `json:"text"`
		Language string  `json:"language,omitempty"`
		Speed    float64 `json:"speed,omitempty"`
	}{p.Text, p.Language, p.Speed})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.post(ctx, "/v1/speech", "application/json", body)
}

// Video renders audio over a solid background and returns the MP4 bytes.
func (c *Client) Video(ctx context.Context, p VideoParams) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"backgroundColor": p.BackgroundColor,
		"resolution":      p.Resolution,
		"title":           p.Title,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	filename := p.Filename
	if filename == "" {
		filename = "audio.mp3"
	}
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(p.Audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	return c.post(ctx, "/v1/video", mw.FormDataContentType(), buf.Bytes())
}

// post sends the request, retrying connection failures and 5xx responses
// with exponential backoff. 4xx responses are returned immediately.
func (c *Client) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path

	op := func() ([]byte, error) {
		data, err := c.send(ctx, url, contentType, bytes.NewReader(payload))
		if err == nil {
			return data, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInitial > 0 {
		b.InitialInterval = c.cfg.RetryInitial
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries + 1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("request failed, retrying", "path", path, "error", err, "backoff", next)
		}),
	}
	if c.cfg.Timeout > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(c.cfg.Timeout))
	}

	data, err := backoff.Retry(ctx, op, opts...)
	if err != nil {
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			return nil, pe.Unwrap()
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", contentType)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if want := resp.Header.Get("Content-Length"); want != "" && want != strconv.Itoa(len(data)) {
		return nil, fmt.Errorf("short response: got %d bytes, want %s", len(data), want)
	}

	c.logger.Debug("request completed",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(data),
		"request_id", resp.Header.Get("X-Request-ID"),
		"duration", time.Since(start),
	)
	return data, nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{Code: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}

	var body struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		se.Message = body.Error
		if se.RequestID == "" {
			se.RequestID = body.RequestID
		}
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}
