// Package fetch fans chunk synthesis out to a bounded set of workers while
// keeping results in chunk order.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/textcast-go/internal/text"
	"github.com/dgnsrekt/textcast-go/internal/workspace"
)

// DefaultConcurrency is the number of simultaneous fetches when unset.
const DefaultConcurrency = 6

// FetchFunc synthesizes one chunk and returns the audio plus its format
// extension (e.g. "mp3").
type FetchFunc func(ctx context.Context, chunk text.Chunk) ([]byte, string, error)

// Options are shared by every pool built from the same configuration.
type Options struct {
	Concurrency int
	// Limiter, when set, caps fetch attempts per second across all pools
	// sharing it.
	Limiter *rate.Limiter
	Retry   RetryPolicy
}

// Pool runs the fetches of one request. It is not reusable concurrently.
type Pool struct {
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	jobs []Job
}

// NewPool creates a pool for a single run.
func NewPool(opts Options, logger *slog.Logger) *Pool {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pool{opts: opts, logger: logger}
}

// Run fetches every chunk with at most Concurrency calls outstanding and
// writes each payload to ws as part-%05d.<ext>. Segments come back indexed
// by chunk position. On the first failure the remaining work is cancelled;
// Run waits for every started fetch to return and reports only that first
// failure, as an *Error. No segments are returned on failure. If ctx itself
// is cancelled, ctx.Err() is returned instead.
func (p *Pool) Run(ctx context.Context, ws *workspace.Workspace, chunks []text.Chunk, fetchOne FetchFunc) ([]Segment, error) {
	p.mu.Lock()
	p.jobs = make([]Job, len(chunks))
	for i, c := range chunks {
		p.jobs[i] = Job{Chunk: c, State: Pending}
	}
	p.mu.Unlock()

	slots := make([]Segment, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, c := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seg, err := p.fetch(gctx, ws, i, c, fetchOne)
			if err != nil {
				return err
			}
			slots[i] = seg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var fe *Error
		if !errors.As(err, &fe) {
			err = &Error{Index: -1, Err: err}
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// Jobs returns a snapshot of the per-chunk state of the current run.
func (p *Pool) Jobs() []Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Job, len(p.jobs))
	copy(out, p.jobs)
	return out
}

func (p *Pool) fetch(ctx context.Context, ws *workspace.Workspace, slot int, c text.Chunk, fetchOne FetchFunc) (Segment, error) {
	p.update(slot, func(j *Job) { j.State = InFlight })
	start := time.Now()

	data, ext, err := p.attempt(ctx, slot, c, fetchOne)
	if err == nil && len(data) == 0 {
		err = ErrEmptyPayload
	}

	var path string
	if err == nil {
		if ext == "" {
			ext = "mp3"
		}
		path, err = ws.WriteFile(fmt.Sprintf("part-%05d.%s", c.Index, ext), data)
	}

	if err != nil {
		p.update(slot, func(j *Job) {
			j.State = Failed
			j.Err = err
		})
		if ctx.Err() == nil {
			p.logger.Error("chunk fetch failed", "chunk", c.Index, "error", err)
		}
		return Segment{}, &Error{Index: c.Index, Err: err}
	}

	p.update(slot, func(j *Job) {
		j.State = Done
		j.ResultPath = path
	})
	p.logger.Debug("chunk fetched",
		"chunk", c.Index,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Segment{Index: c.Index, Path: path, Bytes: len(data)}, nil
}

type payload struct {
	data []byte
	ext  string
}

func (p *Pool) attempt(ctx context.Context, slot int, c text.Chunk, fetchOne FetchFunc) ([]byte, string, error) {
	op := func() (payload, error) {
		if p.opts.Limiter != nil {
			if err := p.opts.Limiter.Wait(ctx); err != nil {
				return payload{}, backoff.Permanent(err)
			}
		}
		p.update(slot, func(j *Job) { j.Attempts++ })

		data, ext, err := fetchOne(ctx, c)
		if err != nil {
			if ctx.Err() != nil || !p.opts.Retry.retryable(err) {
				return payload{}, backoff.Permanent(err)
			}
			return payload{}, err
		}
		return payload{data: data, ext: ext}, nil
	}

	if !p.opts.Retry.Enabled() {
		res, err := op()
		if err != nil {
			return nil, "", unwrapPermanent(err)
		}
		return res.data, res.ext, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.opts.Retry.backOff()),
		backoff.WithMaxTries(uint(p.opts.Retry.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("retrying chunk fetch", "chunk", c.Index, "error", err, "backoff", next)
		}),
	)
	if err != nil {
		return nil, "", err
	}
	return res.data, res.ext, nil
}

func (p *Pool) update(slot int, fn func(*Job)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.jobs[slot])
}

func unwrapPermanent(err error) error {
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return pe.Unwrap()
	}
	return err
}
