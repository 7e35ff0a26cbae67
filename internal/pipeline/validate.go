package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/textcast-go/internal/video"
)

// Speed bounds for the tempo filter.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 1.5
	DefaultSpeed = 1.0
)

// ErrValidation is wrapped by every input error; callers map it to 400.
var ErrValidation = errors.New("invalid request")

var (
	ErrEmptyText           = fmt.Errorf("%w: text is required", ErrValidation)
	ErrTextTooLong         = fmt.Errorf("%w: text is too long", ErrValidation)
	ErrNothingToSynthesize = fmt.Errorf("%w: nothing to synthesize", ErrValidation)
	ErrInvalidResolution   = fmt.Errorf("%w: resolution must look like 1280x720", ErrValidation)
	ErrMissingAudio        = fmt.Errorf("%w: audio file is required", ErrValidation)
	ErrInvalidColor        = fmt.Errorf("%w: invalid background color", ErrValidation)
)

// ValidateText trims s and checks it holds between 1 and max characters.
func ValidateText(s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}
	if n := utf8.RuneCountInString(s); max > 0 && n > max {
		return "", fmt.Errorf("%w (%d characters, limit %d)", ErrTextTooLong, n, max)
	}
	return s, nil
}

// ClampSpeed bounds v to [MinSpeed, MaxSpeed]. Zero and NaN mean the
// default speed.
func ClampSpeed(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return DefaultSpeed
	}
	return math.Min(MaxSpeed, math.Max(MinSpeed, v))
}

// ParseSpeed parses a form or query value. Anything that is not a number
// means the default speed.
func ParseSpeed(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return DefaultSpeed
	}
	return ClampSpeed(v)
}

// ParseResolution parses "<width>x<height>". Empty input yields the default
// frame size.
func ParseResolution(s string) (width, height int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return video.DefaultWidth, video.DefaultHeight, nil
	}

	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, ErrInvalidResolution
	}
	width, werr := strconv.Atoi(ws)
	height, herr := strconv.Atoi(hs)
	if werr != nil || herr != nil {
		return 0, 0, ErrInvalidResolution
	}
	if !video.ValidSize(width, height) {
		return 0, 0, fmt.Errorf("%w (each side even, between 2 and %d)", ErrInvalidResolution, video.MaxDimension)
	}
	return width, height, nil
}
