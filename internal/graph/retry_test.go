package graph

import (
	"errors"
	"testing"
)

func TestWithRetrySucceedsAfterLockErrors(t *testing.T) {
	attempts := 0
	err := WithRetry(testCtx(), "test.op", RetryOptions{MaxRetries: 5, InitialDelayMs: 1}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryPropagatesNonLockErrorImmediately(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := WithRetry(testCtx(), "test.op", RetryOptions{MaxRetries: 5, InitialDelayMs: 1}, func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-lock error, got %d", attempts)
	}
}

func TestWithRetryExhaustsMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetry(testCtx(), "test.op", RetryOptions{MaxRetries: 3, InitialDelayMs: 1}, func() error {
		attempts++
		return errors.New("SQLITE_BUSY")
	})
	wantCode(t, err, CodeStorageError)
	if attempts != 3 {
		t.Fatalf("expected MaxRetries=3 attempts, got %d", attempts)
	}
}
