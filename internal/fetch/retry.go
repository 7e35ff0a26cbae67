package fetch

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures retries of a single chunk fetch. The zero value
// disables retries.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Initial is the first backoff interval; later ones grow exponentially.
	Initial time.Duration
	// Retryable reports whether err is worth another attempt. Nil means
	// IsTemporary.
	Retryable func(error) bool
}

// Enabled reports whether the policy allows more than one attempt.
func (r RetryPolicy) Enabled() bool {
	return r.MaxRetries > 0
}

func (r RetryPolicy) retryable(err error) bool {
	if r.Retryable != nil {
		return r.Retryable(err)
	}
	return IsTemporary(err)
}

func (r RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	b.MaxInterval = 10 * b.InitialInterval
	return b
}

// IsTemporary reports whether err, or anything it wraps, declares itself
// temporary (rate limiting, 5xx, network timeouts).
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	var to interface{ Timeout() bool }
	if errors.As(err, &to) {
		return to.Timeout()
	}
	return false
}
