// Package media runs the external encoder used to assemble audio and video.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrEncodeFailed is returned when ffmpeg exits unsuccessfully.
	ErrEncodeFailed = errors.New("ffmpeg failed")
)

// Encoder runs one encoding job described by ffmpeg-style arguments.
type Encoder interface {
	Encode(ctx context.Context, args []string) error
}

// EncodeError carries the tool's stderr verbatim.
type EncodeError struct {
	Err    error
	Stderr string
}

func (e *EncodeError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", ErrEncodeFailed, msg)
}

// Unwrap exposes ErrEncodeFailed and the process error.
func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncodeFailed, e.Err}
}

// FFmpeg is an Encoder backed by the ffmpeg binary.
type FFmpeg struct {
	path   string
	args   []string
	logger *slog.Logger
}

// NewFFmpeg parses command (e.g. "ffmpeg" or "nice -n 10 ffmpeg") and
// resolves its binary.
func NewFFmpeg(command string, logger *slog.Logger) (*FFmpeg, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(argv) == 0 {
		argv = []string{"ffmpeg"}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &FFmpeg{path: path, args: argv[1:], logger: logger}, nil
}

// NewFFmpegWithPath creates an encoder for a specific binary without
// checking that it exists.
func NewFFmpegWithPath(path string, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{path: path, logger: logger}
}

// Path returns the resolved binary.
func (f *FFmpeg) Path() string {
	return f.path
}

// Encode runs ffmpeg with args. Output is discarded; stderr is kept for the
// error on failure.
func (f *FFmpeg) Encode(ctx context.Context, args []string) error {
	full := make([]string, 0, len(f.args)+len(args)+4)
	full = append(full, f.args...)
	full = append(full, "-hide_banner", "-loglevel", "error", "-nostdin")
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, f.path, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Error("ffmpeg failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return &EncodeError{Err: err, Stderr: stderr.String()}
	}

	f.logger.Debug("ffmpeg finished", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	argv := append(slices.Clone(f.args), "-version")
	out, err := exec.CommandContext(ctx, f.path, argv...).Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Artifact is a finished output file, read back into memory so it outlives
// its workspace.
type Artifact struct {
	Path        string
	Data        []byte
	ContentType string
}
