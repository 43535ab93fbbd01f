package graph

import (
	"path/filepath"
	"testing"
)

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := mustCreateNode(t, db, "Person", Properties{"name": "Ada"})
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second Open against the same file re-runs bootstrap without
	// disturbing existing data.
	db2, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	got, err := db2.GetNode(testCtx(), n.ID)
	if err != nil {
		t.Fatalf("GetNode after reopen: %v", err)
	}
	if got.Properties["name"] != "Ada" {
		t.Fatalf("data lost across reopen: %+v", got.Properties)
	}
}

func TestProcessLockRejectsSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")

	db, err := Open(Options{Path: path, ProcessLock: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := Open(Options{Path: path, ProcessLock: true}); err == nil {
		t.Fatalf("expected a second ProcessLock open on the same file to fail")
	}
}

func TestSetSchemaTakesEffect(t *testing.T) {
	db := newTestDB(t, Options{})

	if _, err := db.CreateNode(testCtx(), "Anything", nil); err != nil {
		t.Fatalf("schemaless create: %v", err)
	}

	db.SetSchema(&Schema{Nodes: map[string]NodeTypeSchema{"Person": {}}})
	_, err := db.CreateNode(testCtx(), "Anything", nil)
	wantCode(t, err, CodeInvalidType)

	db.SetSchema(nil)
	if _, err := db.CreateNode(testCtx(), "Anything", nil); err != nil {
		t.Fatalf("clearing the schema must disable validation: %v", err)
	}
}
