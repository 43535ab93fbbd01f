package graph

import (
	"context"
	"sync"
)

// writeJob is one unit of queued work: run fn, then deliver its error to the
// caller that submitted it.
type writeJob struct {
	fn   func() error
	done chan error
}

// WriteQueue serializes write operations against a DB whose underlying
// engine allows only a single writer. Submissions are executed strictly in
// the order received, each to completion before the next begins, so a
// caller that only ever goes through the queue never observes SQLITE_BUSY
// from internal contention with itself.
//
// A WriteQueue owns one background goroutine that drains jobs. Submit
// blocks until the job has run, so callers see ordinary synchronous error
// returns.
type WriteQueue struct {
	mu     sync.RWMutex
	jobs   chan *writeJob
	closed bool
}

// NewWriteQueue starts a queue with the given backlog capacity. A capacity
// of 0 makes Submit block until the worker goroutine is free to accept the
// next job, which is the safest default for most callers.
func NewWriteQueue(capacity int) *WriteQueue {
	q := &WriteQueue{jobs: make(chan *writeJob, capacity)}
	go q.run()
	return q
}

func (q *WriteQueue) run() {
	for job := range q.jobs {
		job.done <- job.fn()
	}
}

// Submit enqueues fn and blocks until it has run (or ctx is cancelled while
// waiting to be scheduled). Once accepted, a job runs exactly once even if
// the submitting caller stops waiting. fn itself is not passed ctx; callers
// that need cancellation inside fn must capture it in the closure.
func (q *WriteQueue) Submit(ctx context.Context, fn func() error) error {
	// The read lock is held across the send so Close cannot close the jobs
	// channel while a Submit is mid-enqueue.
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return newErr(CodeStorageError, "writeQueue.submit", "write queue is closed")
	}
	job := &writeJob{fn: fn, done: make(chan error, 1)}
	select {
	case q.jobs <- job:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return wrapErr(CodeStorageError, "writeQueue.submit", "cancelled before scheduling", ctx.Err())
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		// The job is already scheduled and will run to completion
		// regardless; we just stop waiting for its result.
		return wrapErr(CodeStorageError, "writeQueue.submit", "cancelled waiting for result", ctx.Err())
	}
}

// Close stops accepting new jobs. Jobs already queued still run; Close does
// not wait for them.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}
