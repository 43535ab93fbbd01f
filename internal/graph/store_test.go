package graph

import "testing"

func TestCreateAndGetNode(t *testing.T) {
	db := newTestDB(t, Options{})

	n := mustCreateNode(t, db, "Person", Properties{"name": "Ada", "age": float64(30)})
	if n.ID == 0 {
		t.Fatalf("expected nonzero node id")
	}

	got, err := db.GetNode(testCtx(), n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Type != "Person" {
		t.Errorf("Type = %q, want Person", got.Type)
	}
	if got.Properties["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", got.Properties["name"])
	}
}

func TestGetNodeNotFound(t *testing.T) {
	db := newTestDB(t, Options{})
	_, err := db.GetNode(testCtx(), 999)
	wantCode(t, err, CodeNotFound)
}

func TestCreateNodeEmptyType(t *testing.T) {
	db := newTestDB(t, Options{})
	_, err := db.CreateNode(testCtx(), "", Properties{})
	wantCode(t, err, CodeInvalidType)
}

func TestUpdateNodeMerge(t *testing.T) {
	db := newTestDB(t, Options{})
	n := mustCreateNode(t, db, "Person", Properties{"name": "Ada", "age": float64(30)})

	updated, err := db.UpdateNode(testCtx(), n.ID, Properties{"age": float64(31)}, false)
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if updated.Properties["name"] != "Ada" {
		t.Errorf("merge should preserve name, got %v", updated.Properties["name"])
	}
	if updated.Properties["age"] != float64(31) {
		t.Errorf("age = %v, want 31", updated.Properties["age"])
	}
	if !updated.UpdatedAt.After(n.UpdatedAt) && !updated.UpdatedAt.Equal(n.UpdatedAt) {
		t.Errorf("UpdatedAt should not be before creation time")
	}
}

func TestUpdateNodeReplace(t *testing.T) {
	db := newTestDB(t, Options{})
	n := mustCreateNode(t, db, "Person", Properties{"name": "Ada", "age": float64(30)})

	updated, err := db.UpdateNode(testCtx(), n.ID, Properties{"age": float64(31)}, true)
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if _, ok := updated.Properties["name"]; ok {
		t.Errorf("replace should drop name, got %v", updated.Properties)
	}
}

func TestDeleteNode(t *testing.T) {
	db := newTestDB(t, Options{})
	n := mustCreateNode(t, db, "Person", nil)

	if err := db.DeleteNode(testCtx(), n.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := db.GetNode(testCtx(), n.ID); err == nil {
		t.Fatalf("expected NOT_FOUND after delete")
	}
}

func TestDeleteNodeNotFound(t *testing.T) {
	db := newTestDB(t, Options{})
	err := db.DeleteNode(testCtx(), 12345)
	wantCode(t, err, CodeNotFound)
}

func TestCreateEdgeAndCascadeDelete(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	b := mustCreateNode(t, db, "Person", nil)
	e := mustCreateEdge(t, db, "KNOWS", a.ID, b.ID)

	got, err := db.GetEdge(testCtx(), e.ID)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if got.From != a.ID || got.To != b.ID {
		t.Errorf("edge endpoints = (%d, %d), want (%d, %d)", got.From, got.To, a.ID, b.ID)
	}

	if err := db.DeleteNode(testCtx(), a.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := db.GetEdge(testCtx(), e.ID); err == nil {
		t.Fatalf("expected edge to cascade-delete with its node")
	}
}

func TestCreateEdgeInvalidEndpoint(t *testing.T) {
	db := newTestDB(t, Options{})
	a := mustCreateNode(t, db, "Person", nil)
	_, err := db.CreateEdge(testCtx(), "KNOWS", a.ID, 99999, nil)
	wantCode(t, err, CodeNotFound)
}

func TestSchemaValidation(t *testing.T) {
	schema := &Schema{
		Nodes: map[string]NodeTypeSchema{
			"Person":  {Properties: map[string]bool{"name": true}},
			"Company": {},
		},
		Edges: map[string]EdgeTypeSchema{
			"WORKS_AT": {From: map[string]bool{"Person": true}, To: map[string]bool{"Company": true}},
		},
	}
	db := newTestDB(t, Options{Schema: schema})

	_, err := db.CreateNode(testCtx(), "Alien", nil)
	wantCode(t, err, CodeInvalidType)

	_, err = db.CreateNode(testCtx(), "Person", Properties{"unexpected": 1})
	wantCode(t, err, CodeInvalidProperties)

	person := mustCreateNode(t, db, "Person", Properties{"name": "Ada"})
	company := mustCreateNode(t, db, "Company", nil)
	if _, err := db.CreateEdge(testCtx(), "WORKS_AT", company.ID, person.ID, nil); err == nil {
		t.Fatalf("expected INVALID_TYPE for reversed endpoints")
	}
	if _, err := db.CreateEdge(testCtx(), "WORKS_AT", person.ID, company.ID, nil); err != nil {
		t.Fatalf("expected valid edge to succeed: %v", err)
	}
}

func TestPropertiesRoundTrip(t *testing.T) {
	db := newTestDB(t, Options{})
	props := Properties{
		"str":    "hello",
		"num":    float64(3.5),
		"bool":   true,
		"null":   nil,
		"list":   []any{float64(1), "two", false},
		"nested": map[string]any{"inner": []any{map[string]any{"deep": "yes"}}},
	}
	n := mustCreateNode(t, db, "Blob", props)

	got, err := db.GetNode(testCtx(), n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Properties["str"] != "hello" || got.Properties["num"] != float64(3.5) || got.Properties["bool"] != true {
		t.Errorf("scalar properties lost: %+v", got.Properties)
	}
	if v, ok := got.Properties["null"]; !ok || v != nil {
		t.Errorf("null-valued key must survive as an explicit null, got %+v", got.Properties)
	}
	list, ok := got.Properties["list"].([]any)
	if !ok || len(list) != 3 || list[1] != "two" {
		t.Errorf("list property lost: %+v", got.Properties["list"])
	}
	nested, ok := got.Properties["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested property lost: %+v", got.Properties["nested"])
	}
	inner, ok := nested["inner"].([]any)
	if !ok || len(inner) != 1 {
		t.Fatalf("nested list lost: %+v", nested)
	}
}

func TestGetNodeInvalidID(t *testing.T) {
	db := newTestDB(t, Options{})
	_, err := db.GetNode(testCtx(), 0)
	wantCode(t, err, CodeInvalidID)
	_, err = db.GetNode(testCtx(), -7)
	wantCode(t, err, CodeInvalidID)
}
