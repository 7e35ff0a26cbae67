package fetch

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/textcast-go/internal/text"
)

// JobState represents the state of a chunk fetch.
type JobState int

const (
	// Pending means the chunk has not been started.
	Pending JobState = iota
	// InFlight means the fetch (including any retries) is running.
	InFlight
	// Done means the audio was fetched and written to the workspace.
	Done
	// Failed means the fetch failed or was cancelled.
	Failed
)

// String returns the string representation of the state.
func (s JobState) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job tracks one chunk through the pool. States only move forward.
type Job struct {
	Chunk      text.Chunk
	State      JobState
	Attempts   int
	ResultPath string
	Err        error
}

// Segment is one chunk's audio on disk inside the workspace.
type Segment struct {
	Index int
	Path  string
	Bytes int
}

var (
	// ErrFetchFailed is wrapped by every error Run returns for a chunk.
	ErrFetchFailed = errors.New("segment fetch failed")
	// ErrEmptyPayload is returned when a fetch succeeds with no audio.
	ErrEmptyPayload = errors.New("empty audio payload")
)

// Error reports which chunk made a run fail.
type Error struct {
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: chunk %d: %v", ErrFetchFailed, e.Index, e.Err)
}

// Unwrap exposes both ErrFetchFailed and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}
