package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// languagePlaceholder is replaced by the request language in command arguments.
const languagePlaceholder = "{language}"

var (
	// ErrCommandNotFound is returned when the configured binary is not found.
	ErrCommandNotFound = errors.New("tts command not found")
	// ErrEmptyCommand is returned when no command line is configured.
	ErrEmptyCommand = errors.New("tts command empty")
)

// ExecConfig holds configuration for the command-line TTS engine.
type ExecConfig struct {
	// Command is a shell-style command line, e.g. `espeak-ng -v {language} --stdout`.
	Command string
	// Format is the extension of the audio the command writes to stdout.
	Format string
}

// ExecEngine runs a local program that reads text on stdin and writes audio
// on stdout, e.g. piper or espeak-ng.
type ExecEngine struct {
	argv   []string
	format string
	logger *slog.Logger
}

// NewExecEngine parses cfg.Command and verifies the binary exists.
func NewExecEngine(cfg ExecConfig, logger *slog.Logger) (*ExecEngine, error) {
	argv, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, argv[0])
	}

	format := cfg.Format
	if format == "" {
		format = "wav"
	}

	return &ExecEngine{argv: argv, format: format, logger: logger}, nil
}

// Name returns the engine identifier.
func (e *ExecEngine) Name() string {
	return "exec"
}

// Synthesize runs the command once for req.Text.
func (e *ExecEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if err := checkRequest(ctx, req); err != nil {
		return nil, err
	}

	args := make([]string, 0, len(e.argv)-1)
	for _, a := range e.argv[1:] {
		args = append(args, strings.ReplaceAll(a, languagePlaceholder, req.Language))
	}

	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("tts command failed",
			"command", e.argv[0],
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	return &AudioResult{Data: stdout.Bytes(), Format: e.format}, nil
}
