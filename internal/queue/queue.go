// Package queue holds finished artifacts for a single background publisher.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDuplicateJob is returned when a job with the same dedupe key exists.
	ErrDuplicateJob = errors.New("duplicate job")
)

// Handler is called by the worker for each job.
type Handler func(ctx context.Context, job *PublishJob) error

// CompletedCallback is called after each handled job with its outcome.
type CompletedCallback func(job *PublishJob, err error)

// ShutdownCallback is called once the worker has stopped.
type ShutdownCallback func()

// Queue is a bounded FIFO with a single worker.
type Queue struct {
	mu            sync.Mutex
	jobs          []*PublishJob
	capacity      int
	dedupeKeys    map[string]bool
	logger        *slog.Logger
	closed        bool
	handler       Handler
	onCompleted   CompletedCallback
	onShutdown    ShutdownCallback
	cancelCurrent context.CancelFunc
	wg            sync.WaitGroup
	stopCh        chan struct{}
	enqueueCh     chan struct{}
}

// NewQueue creates a new bounded queue.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:       make([]*PublishJob, 0, capacity),
		capacity:   capacity,
		dedupeKeys: make(map[string]bool),
		logger:     logger,
		stopCh:     make(chan struct{}),
		enqueueCh:  make(chan struct{}, 1),
	}
}

// SetHandler sets the function called for each job.
func (q *Queue) SetHandler(fn Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = fn
}

// SetJobCompletedCallback sets the function called after each job.
func (q *Queue) SetJobCompletedCallback(fn CompletedCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onCompleted = fn
}

// SetShutdownCallback sets the function called after the worker stops.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onShutdown = fn
}

// Enqueue adds a job to the queue.
func (q *Queue) Enqueue(job *PublishJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}

	if job.DedupeKey != "" && q.dedupeKeys[job.DedupeKey] {
		return ErrDuplicateJob
	}

	q.jobs = append(q.jobs, job)
	if job.DedupeKey != "" {
		q.dedupeKeys[job.DedupeKey] = true
	}

	q.logger.Debug("job enqueued", "job_id", job.ID, "queue_depth", len(q.jobs))

	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Start begins the worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop cancels the job in progress, waits for the worker and then runs the
// shutdown callback. Queued jobs are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	if q.cancelCurrent != nil {
		q.cancelCurrent()
	}
	dropped := len(q.jobs)
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()

	if dropped > 0 {
		q.logger.Warn("queue stopped with pending jobs", "dropped", dropped)
	}

	q.mu.Lock()
	cb := q.onShutdown
	q.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		if job := q.dequeue(); job != nil {
			q.processJob(job)
			continue
		}

		select {
		case <-q.stopCh:
			return
		case <-q.enqueueCh:
		}
	}
}

// dequeue removes and returns the next unexpired job.
func (q *Queue) dequeue() *PublishJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]

		if job.DedupeKey != "" {
			delete(q.dedupeKeys, job.DedupeKey)
		}

		if job.IsExpired() {
			q.logger.Debug("skipping expired job", "job_id", job.ID)
			continue
		}

		return job
	}

	return nil
}

func (q *Queue) processJob(job *PublishJob) {
	q.mu.Lock()
	handler := q.handler
	completed := q.onCompleted
	ctx, cancel := context.WithCancel(context.Background())
	q.cancelCurrent = cancel
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		q.cancelCurrent = nil
		q.mu.Unlock()
	}()

	var err error
	if handler == nil {
		q.logger.Warn("no handler set, skipping job", "job_id", job.ID)
	} else {
		q.logger.Info("publishing artifact", "job_id", job.ID, "request_id", job.RequestID, "filename", job.Filename)
		err = handler(ctx, job)
		switch {
		case errors.Is(err, context.Canceled):
			q.logger.Info("job cancelled", "job_id", job.ID)
		case err != nil:
			q.logger.Error("job failed", "job_id", job.ID, "error", err)
		default:
			q.logger.Info("job completed", "job_id", job.ID)
		}
	}

	if completed != nil {
		completed(job, err)
	}
}
