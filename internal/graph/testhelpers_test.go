package graph

import (
	"context"
	"path/filepath"
	"testing"
)

func testCtx() context.Context { return context.Background() }

// newTestDB opens a fresh graph database backed by a file in t.TempDir():
// every test gets an isolated file so parallel tests never contend on the
// same database, and Close is registered via t.Cleanup so nothing leaks
// past the test.
func newTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "test.db")
	}
	db, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func mustCreateNode(t *testing.T, db *DB, nodeType string, props Properties) *Node {
	t.Helper()
	n, err := db.CreateNode(testCtx(), nodeType, props)
	if err != nil {
		t.Fatalf("CreateNode(%q): %v", nodeType, err)
	}
	return n
}

func mustCreateEdge(t *testing.T, db *DB, edgeType string, from, to int64) *Edge {
	t.Helper()
	e, err := db.CreateEdge(testCtx(), edgeType, from, to, nil)
	if err != nil {
		t.Fatalf("CreateEdge(%q, %d, %d): %v", edgeType, from, to, err)
	}
	return e
}

func wantCode(t *testing.T, err error, want Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	got, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected *Error with code %s, got %v (%T)", want, err, err)
	}
	if got != want {
		t.Fatalf("expected code %s, got %s (%v)", want, got, err)
	}
}
