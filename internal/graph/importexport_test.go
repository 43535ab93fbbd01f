package graph

import (
	"encoding/json"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestDB(t, Options{})
	a := mustCreateNode(t, src, "Person", Properties{"name": "Ada"})
	b := mustCreateNode(t, src, "Person", Properties{"name": "Grace"})
	mustCreateEdge(t, src, "KNOWS", a.ID, b.ID)

	doc, err := src.Export(testCtx())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Metadata.Version != ExportFormatVersion {
		t.Errorf("Version = %q, want %q", doc.Metadata.Version, ExportFormatVersion)
	}
	if doc.Metadata.ExportedAt.IsZero() {
		t.Errorf("ExportedAt must be stamped")
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("export = %d nodes / %d edges, want 2/1", len(doc.Nodes), len(doc.Edges))
	}

	// Serialize to bytes and back, as a CLI export/import would.
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var parsed ExportDocument
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst := newTestDB(t, Options{})
	if err := dst.Import(testCtx(), &parsed); err != nil {
		t.Fatalf("Import: %v", err)
	}

	nodes, err := dst.Query("Person").OrderBy("name", false).Exec(testCtx())
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 imported nodes, got %d", len(nodes))
	}

	reached, err := dst.ToArray(testCtx(), nodes[0].ID, TraversalOptions{Dir: DirBoth, MaxDepth: 1})
	if err != nil {
		t.Fatalf("ToArray: %v", err)
	}
	if len(reached) != 1 {
		t.Fatalf("expected the imported edge to connect the two nodes, reached %d", len(reached))
	}
}

func TestImportIsAdditive(t *testing.T) {
	db := newTestDB(t, Options{})
	mustCreateNode(t, db, "Person", Properties{"name": "Ada"})

	doc, err := db.Export(testCtx())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := db.Import(testCtx(), doc); err != nil {
		t.Fatalf("Import: %v", err)
	}

	count, err := db.Query("Person").Count(testCtx())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("re-importing into the same database must add, not merge; count = %d", count)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	db := newTestDB(t, Options{})

	err := db.Import(testCtx(), &ExportDocument{Metadata: ExportMetadata{Version: "2"}})
	wantCode(t, err, CodeUnsupportedVersion)

	err = db.Import(testCtx(), &ExportDocument{Metadata: ExportMetadata{Version: "not-a-version"}})
	wantCode(t, err, CodeUnsupportedVersion)
}

func TestImportRollsBackOnBadEdge(t *testing.T) {
	db := newTestDB(t, Options{})

	doc := &ExportDocument{
		Metadata: ExportMetadata{Version: ExportFormatVersion},
		Nodes: []exportedNode{
			{ID: 1, Type: "Person", Properties: json.RawMessage(`{"name":"Ada"}`)},
		},
		Edges: []exportedEdge{
			{ID: 1, Type: "KNOWS", From: 1, To: 42},
		},
	}
	err := db.Import(testCtx(), doc)
	wantCode(t, err, CodeInvalidID)

	count, err := db.Query("").Count(testCtx())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("a failed import must leave the database unchanged, count = %d", count)
	}
}
