// Package video renders narrated audio over a solid color background.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dgnsrekt/textcast-go/internal/media"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

const (
	// ContentType is the MIME type of synthesized video.
	ContentType = "video/mp4"
	// DefaultBackground is used when no color is given.
	DefaultBackground = "#0b0c10"
	// DefaultWidth and DefaultHeight are used when no resolution is given.
	DefaultWidth  = 1280
	DefaultHeight = 720
	// MaxDimension bounds either side of the frame.
	MaxDimension = 7680
	// FrameRate of the generated color track.
	FrameRate = 30

	// colorTrackSeconds is an upper bound on the color source; -shortest
	// trims it to the audio.
	colorTrackSeconds = 36000
	inputName         = "in.mp3"
)

// ErrVideoFailed is returned when the video cannot be produced.
var ErrVideoFailed = errors.New("video synthesis failed")

var colorPattern = regexp.MustCompile(`^(#([[:xdigit:]]{3}|[[:xdigit:]]{6}|[[:xdigit:]]{8})|0x([[:xdigit:]]{6}|[[:xdigit:]]{8})|[A-Za-z]{3,32})$`)

// ValidColor reports whether c is a hex color (#rgb, #rrggbb, #rrggbbaa,
// 0xrrggbb[aa]) or a plain color name. Anything else could smuggle filter
// syntax into the lavfi graph.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// ValidSize reports whether a frame of width x height can be encoded.
// yuv420p output needs both sides even.
func ValidSize(width, height int) bool {
	return width >= 2 && height >= 2 &&
		width <= MaxDimension && height <= MaxDimension &&
		width%2 == 0 && height%2 == 0
}

// Request describes one video.
type Request struct {
	Audio           []byte
	BackgroundColor string
	Width           int
	Height          int
	// Title is accepted but not rendered.
	Title string
}

// Synthesizer muxes audio against a generated color track.
type Synthesizer struct {
	encoder media.Encoder
	logger  *slog.Logger
}

// NewSynthesizer creates a synthesizer using enc.
func NewSynthesizer(enc media.Encoder, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{encoder: enc, logger: logger}
}

// Synthesize writes req.Audio into ws and encodes an H.264/AAC MP4 whose
// duration equals the audio's.
func (s *Synthesizer) Synthesize(ctx context.Context, ws *workspace.Workspace, req Request) (*media.Artifact, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("%w: no audio", ErrVideoFailed)
	}
	bg := req.BackgroundColor
	if bg == "" {
		bg = DefaultBackground
	}
	if !ValidColor(bg) {
		return nil, fmt.Errorf("%w: invalid background color %q", ErrVideoFailed, bg)
	}
	if !ValidSize(req.Width, req.Height) {
		return nil, fmt.Errorf("%w: invalid resolution %dx%d", ErrVideoFailed, req.Width, req.Height)
	}

	in, err := ws.WriteFile(inputName, req.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: write input: %w", ErrVideoFailed, err)
	}
	out := ws.Path("out-" + uuid.NewString() + ".mp4")

	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%d", bg, req.Width, req.Height, FrameRate, colorTrackSeconds)
	args := []string{
		"-f", "lavfi", "-i", source,
		"-i", in,
		"-shortest",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"-crf", strconv.Itoa(23),
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-y", out,
	}

	if err := s.encoder.Encode(ctx, args); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrVideoFailed, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %w", ErrVideoFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrVideoFailed)
	}

	s.logger.Info("video synthesized",
		"workspace", ws.ID,
		"resolution", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"background", bg,
		"bytes", len(data),
		"size", humanize.Bytes(uint64(len(data))),
	)
	return &media.Artifact{Path: out, Data: data, ContentType: ContentType}, nil
}
