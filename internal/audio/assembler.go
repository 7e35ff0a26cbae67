// Package audio concatenates fetched speech segments into one MP3.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dgnsrekt/textcast-go/internal/fetch"
	"github.com/dgnsrekt/textcast-go/internal/media"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

const (
	// ContentType is the MIME type of assembled audio.
	ContentType = "audio/mpeg"
	// Bitrate is the MP3 output bitrate.
	Bitrate = "192k"
	// ManifestName is the concat list written into the workspace.
	ManifestName = "concat.txt"
)

// ErrAssemblyFailed is returned when segments cannot be joined.
var ErrAssemblyFailed = errors.New("audio assembly failed")

// Assembler joins segments in index order and applies a tempo filter.
type Assembler struct {
	encoder media.Encoder
	logger  *slog.Logger
}

// NewAssembler creates an assembler using enc.
func NewAssembler(enc media.Encoder, logger *slog.Logger) *Assembler {
	return &Assembler{encoder: enc, logger: logger}
}

// Assemble writes the manifest into ws, encodes a single MP3 at the given
// speed and reads it back. speed must already be validated; non-positive
// values mean 1.0.
func (a *Assembler) Assemble(ctx context.Context, ws *workspace.Workspace, segments []fetch.Segment, speed float64) (*media.Artifact, error) {
	manifest, err := NewManifest(segments)
	if err != nil {
		return nil, err
	}

	list, err := ws.WriteFile(ManifestName, []byte(manifest.Render()))
	if err != nil {
		return nil, fmt.Errorf("%w: write manifest: %w", ErrAssemblyFailed, err)
	}

	if speed <= 0 {
		speed = 1
	}
	out := ws.Path("out-" + uuid.NewString() + ".mp3")

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-filter:a", "atempo=" + strconv.FormatFloat(speed, 'f', -1, 64),
		"-c:a", "libmp3lame",
		"-b:a", Bitrate,
		"-y", out,
	}
	if err := a.encoder.Encode(ctx, args); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrAssemblyFailed, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %w", ErrAssemblyFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrAssemblyFailed)
	}

	a.logger.Info("audio assembled",
		"workspace", ws.ID,
		"segments", len(manifest.Paths),
		"speed", speed,
		"bytes", len(data),
		"size", humanize.Bytes(uint64(len(data))),
	)
	return &media.Artifact{Path: out, Data: data, ContentType: ContentType}, nil
}
