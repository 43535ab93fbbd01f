package graph

import (
	"errors"
	"testing"
)

func TestMergeNodeCreateThenMatch(t *testing.T) {
	db := newTestDB(t, Options{})

	first, err := db.MergeNode(testCtx(), MergeNodeOptions{
		Type:     "Job",
		Match:    Properties{"url": "https://example.com/1"},
		OnCreate: Properties{"title": "engineer"},
	})
	if err != nil {
		t.Fatalf("MergeNode (create): %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first merge to create")
	}
	if first.Node.Properties["title"] != "engineer" {
		t.Errorf("OnCreate properties not applied: %+v", first.Node.Properties)
	}

	second, err := db.MergeNode(testCtx(), MergeNodeOptions{
		Type:     "Job",
		Match:    Properties{"url": "https://example.com/1"},
		OnCreate: Properties{"title": "engineer"},
	})
	if err != nil {
		t.Fatalf("MergeNode (match): %v", err)
	}
	if second.Created {
		t.Fatalf("expected second merge to match, not create")
	}
	if second.Node.ID != first.Node.ID {
		t.Fatalf("expected same node id on re-merge, got %d then %d", first.Node.ID, second.Node.ID)
	}
}

func TestMergeNodeOnMatchApplied(t *testing.T) {
	db := newTestDB(t, Options{})
	mustCreateNode(t, db, "Person", Properties{"email": "a@b.c", "visits": float64(1)})

	res, err := db.MergeNode(testCtx(), MergeNodeOptions{
		Type:    "Person",
		Match:   Properties{"email": "a@b.c"},
		OnMatch: Properties{"visits": float64(2)},
	})
	if err != nil {
		t.Fatalf("MergeNode: %v", err)
	}
	if res.Created {
		t.Fatalf("expected a match")
	}
	if res.Node.Properties["visits"] != float64(2) {
		t.Errorf("OnMatch should overwrite visits, got %v", res.Node.Properties["visits"])
	}
}

func TestMergeNodeOnCreateIgnoredOnMatch(t *testing.T) {
	db := newTestDB(t, Options{})
	mustCreateNode(t, db, "Person", Properties{"email": "a@b.c"})

	res, err := db.MergeNode(testCtx(), MergeNodeOptions{
		Type:     "Person",
		Match:    Properties{"email": "a@b.c"},
		OnCreate: Properties{"source": "import"},
	})
	if err != nil {
		t.Fatalf("MergeNode: %v", err)
	}
	if _, ok := res.Node.Properties["source"]; ok {
		t.Errorf("OnCreate must not be applied on the match branch: %+v", res.Node.Properties)
	}
}

func TestMergeNodeEmptyMatch(t *testing.T) {
	db := newTestDB(t, Options{})
	_, err := db.MergeNode(testCtx(), MergeNodeOptions{Type: "Person"})
	wantCode(t, err, CodeEmptyMatch)
}

func TestMergeNodeConflictNeverMutates(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Company", Properties{"name": "Tech"})
	b := mustCreateNode(t, db, "Company", Properties{"name": "Tech"})

	_, err := db.MergeNode(testCtx(), MergeNodeOptions{
		Type:    "Company",
		Match:   Properties{"name": "Tech"},
		OnMatch: Properties{"touched": true},
	})
	wantCode(t, err, CodeMergeConflict)

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(gerr.ConflictingNodes) != 2 {
		t.Fatalf("expected both conflicting ids in the payload, got %v", gerr.ConflictingNodes)
	}

	count, err := db.Query("Company").Count(testCtx())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("conflict must not create a node, count = %d", count)
	}
	for _, id := range []int64{a.ID, b.ID} {
		n, err := db.GetNode(testCtx(), id)
		if err != nil {
			t.Fatalf("GetNode(%d): %v", id, err)
		}
		if _, ok := n.Properties["touched"]; ok {
			t.Fatalf("conflict must not mutate node %d: %+v", id, n.Properties)
		}
	}
}

func TestMergeNodeInsideTransaction(t *testing.T) {
	db := newTestDB(t, Options{})

	err := db.Transaction(testCtx(), func(tx *Tx) error {
		res, err := tx.MergeNode(MergeNodeOptions{
			Type:  "Person",
			Match: Properties{"email": "tx@b.c"},
		})
		if err != nil {
			return err
		}
		if !res.Created {
			t.Errorf("expected create inside transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	ok, err := db.Query("Person").Where("email", OpEq, "tx@b.c").Exists(testCtx())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("expected merged node to survive commit")
	}
}

func TestMergeNodeConflictInsideTransactionKeepsEarlierWork(t *testing.T) {
	db := newTestDB(t, Options{})
	mustCreateNode(t, db, "Company", Properties{"name": "Dup"})
	mustCreateNode(t, db, "Company", Properties{"name": "Dup"})

	err := db.Transaction(testCtx(), func(tx *Tx) error {
		if _, err := tx.CreateNode("Person", Properties{"name": "kept"}); err != nil {
			return err
		}
		// The conflicting merge fails under its own savepoint; the earlier
		// create in this transaction survives.
		if _, err := tx.MergeNode(MergeNodeOptions{
			Type:  "Company",
			Match: Properties{"name": "Dup"},
		}); err == nil {
			t.Errorf("expected merge conflict")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	ok, err := db.Query("Person").Where("name", OpEq, "kept").Exists(testCtx())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("expected pre-merge work to survive a failed nested merge")
	}
}

func TestMergeEdgeCreateThenMatch(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)

	first, err := db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
		OnCreate: Properties{"since": float64(2020)},
	})
	if err != nil {
		t.Fatalf("MergeEdge (create): %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first edge merge to create")
	}

	second, err := db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
	})
	if err != nil {
		t.Fatalf("MergeEdge (match): %v", err)
	}
	if second.Created {
		t.Fatalf("expected second edge merge to match")
	}
	if second.Edge.ID != first.Edge.ID {
		t.Fatalf("expected same edge id, got %d then %d", first.Edge.ID, second.Edge.ID)
	}
	if second.Edge.Properties["since"] != float64(2020) {
		t.Errorf("match without OnMatch must leave properties unchanged: %+v", second.Edge.Properties)
	}
}

func TestMergeEdgeOnMatchMergesProperties(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)
	mustCreateEdge(t, db, "KNOWS", a.ID, b.ID)

	res, err := db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
		OnMatch: Properties{"weight": float64(3)},
	})
	if err != nil {
		t.Fatalf("MergeEdge: %v", err)
	}
	if res.Created {
		t.Fatalf("expected a match")
	}
	if res.Edge.Properties["weight"] != float64(3) {
		t.Errorf("OnMatch not applied: %+v", res.Edge.Properties)
	}
}

func TestMergeEdgeConflict(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)
	mustCreateEdge(t, db, "KNOWS", a.ID, b.ID)
	mustCreateEdge(t, db, "KNOWS", a.ID, b.ID)

	_, err := db.MergeEdge(testCtx(), MergeEdgeOptions{Type: "KNOWS", From: a.ID, To: b.ID})
	wantCode(t, err, CodeMergeConflict)
}

func TestMergeEdgeMissingEndpoint(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)

	_, err := db.MergeEdge(testCtx(), MergeEdgeOptions{Type: "KNOWS", From: a.ID, To: 9999})
	wantCode(t, err, CodeNotFound)
}

func TestMergeEdgeBasePropertiesOnCreate(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)

	res, err := db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
		Properties: Properties{"since": float64(2019), "weight": float64(1)},
		OnCreate:   Properties{"since": float64(2020)},
	})
	if err != nil {
		t.Fatalf("MergeEdge: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected create")
	}
	if res.Edge.Properties["since"] != float64(2020) {
		t.Errorf("OnCreate must win over the base properties, got %v", res.Edge.Properties["since"])
	}
	if res.Edge.Properties["weight"] != float64(1) {
		t.Errorf("base properties must be applied on create: %+v", res.Edge.Properties)
	}
}

func TestMergeEdgeBasePropertiesOnMatch(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)
	mustCreateEdge(t, db, "KNOWS", a.ID, b.ID)

	// Base properties alone (no OnMatch) still merge into an existing edge.
	res, err := db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
		Properties: Properties{"weight": float64(2)},
	})
	if err != nil {
		t.Fatalf("MergeEdge: %v", err)
	}
	if res.Created {
		t.Fatalf("expected a match")
	}
	if res.Edge.Properties["weight"] != float64(2) {
		t.Errorf("base properties must merge on match: %+v", res.Edge.Properties)
	}

	res, err = db.MergeEdge(testCtx(), MergeEdgeOptions{
		Type: "KNOWS", From: a.ID, To: b.ID,
		Properties: Properties{"weight": float64(3)},
		OnMatch:    Properties{"weight": float64(4)},
	})
	if err != nil {
		t.Fatalf("MergeEdge: %v", err)
	}
	if res.Edge.Properties["weight"] != float64(4) {
		t.Errorf("OnMatch must win over the base properties, got %v", res.Edge.Properties["weight"])
	}
}
