package graph

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryOptions configures WithRetry. The zero value is usable and applies
// conservative defaults.
type RetryOptions struct {
	MaxRetries     int
	InitialDelayMs int
	UseJitter      bool
	maxDelay       time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	out := o
	if out.MaxRetries == 0 {
		out.MaxRetries = 5
	}
	if out.InitialDelayMs == 0 {
		out.InitialDelayMs = 10
	}
	if out.maxDelay == 0 {
		out.maxDelay = 500 * time.Millisecond
	}
	return out
}

// isLockErr reports whether err looks like a SQLite lock-contention error
// (SQLITE_BUSY / SQLITE_LOCKED), the only class of error WithRetry retries.
// Any other failure, including validation and already-wrapped *Error values
// whose Code isn't storage-related, is returned to the caller immediately.
func isLockErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// WithRetry runs fn, retrying with exponential backoff (plus optional
// jitter) only when fn fails with what looks like lock contention. Any
// other error is returned as-is. MaxRetries counts attempts in total; when
// all of them fail on lock contention, the last error is returned wrapped
// as STORAGE_ERROR, as is a ctx cancellation during a backoff wait. The engine
// itself never silently retries a caller's operation except through this
// helper, and only for transient lock errors. A complementary WriteQueue
// serializes writes through a FIFO queue for callers that prefer
// pessimistic ordering over optimistic retry.
func WithRetry(ctx context.Context, op string, opts RetryOptions, fn func() error) error {
	o := opts.withDefaults()

	var lastErr error
	delay := time.Duration(o.InitialDelayMs) * time.Millisecond
	for attempt := 1; attempt <= o.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockErr(err) {
			return err
		}
		if attempt == o.MaxRetries {
			break
		}

		wait := delay
		if o.UseJitter {
			wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if wait > o.maxDelay {
			wait = o.maxDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return wrapErr(CodeStorageError, op, "retry wait interrupted", ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > o.maxDelay {
			delay = o.maxDelay
		}
	}
	return wrapErr(CodeStorageError, op, "exceeded retry attempts on lock contention", lastErr)
}
