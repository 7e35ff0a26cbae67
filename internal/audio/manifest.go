package audio

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dgnsrekt/textcast-go/internal/fetch"
)

// Manifest is the ordered list of segment files handed to the concat demuxer.
type Manifest struct {
	Paths []string
}

// NewManifest orders segments by index. Indices must be dense from 0.
func NewManifest(segments []fetch.Segment) (*Manifest, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrAssemblyFailed)
	}

	sorted := slices.Clone(segments)
	slices.SortFunc(sorted, func(a, b fetch.Segment) int { return a.Index - b.Index })

	paths := make([]string, len(sorted))
	for i, s := range sorted {
		if s.Index != i {
			return nil, fmt.Errorf("%w: segment %d missing", ErrAssemblyFailed, i)
		}
		paths[i] = s.Path
	}
	return &Manifest{Paths: paths}, nil
}

// Render returns the concat list, one `file '<path>'` line per segment.
func (m *Manifest) Render() string {
	var b strings.Builder
	for _, p := range m.Paths {
		b.WriteString("file '")
		b.WriteString(escapePath(p))
		b.WriteString("'\n")
	}
	return b.String()
}

// escapePath quotes p for a single-quoted concat directive: each ' closes
// the quote, emits an escaped quote and reopens.
func escapePath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
