package graph

import (
	"sync"
	"testing"
)

func TestWriteQueueRunsInSubmissionOrder(t *testing.T) {
	q := NewWriteQueue(16)
	defer q.Close()

	var mu sync.Mutex
	var order []int

	// Submit blocks until its job ran, so sequential submissions pin the
	// expected execution order.
	for i := 0; i < 8; i++ {
		i := i
		if err := q.Submit(testCtx(), func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 8 {
		t.Fatalf("expected 8 jobs to run, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("jobs ran out of order: %v", order)
		}
	}
}

func TestWriteQueuePropagatesJobError(t *testing.T) {
	q := NewWriteQueue(0)
	defer q.Close()

	want := newErr(CodeStorageError, "test", "boom")
	err := q.Submit(testCtx(), func() error { return want })
	if err != want {
		t.Fatalf("Submit = %v, want the job's own error", err)
	}
}

func TestWriteQueueRejectsAfterClose(t *testing.T) {
	q := NewWriteQueue(0)
	q.Close()

	err := q.Submit(testCtx(), func() error { return nil })
	wantCode(t, err, CodeStorageError)

	// A second Close is a no-op.
	q.Close()
}

func TestWriteQueueSerializesDBWrites(t *testing.T) {
	db := newTestDB(t, Options{})
	q := NewWriteQueue(4)
	defer q.Close()

	for i := 0; i < 5; i++ {
		if err := q.Submit(testCtx(), func() error {
			_, err := db.CreateNode(testCtx(), "Event", nil)
			return err
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	count, err := db.Query("Event").Count(testCtx())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected each queued write to run exactly once, count = %d", count)
	}
}
