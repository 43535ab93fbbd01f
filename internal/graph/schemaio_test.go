package graph

import (
	"path/filepath"
	"testing"
)

func sampleSchema() *Schema {
	return &Schema{
		Nodes: map[string]NodeTypeSchema{
			"Person":  {Properties: map[string]bool{"name": true, "age": true}},
			"Company": {},
		},
		Edges: map[string]EdgeTypeSchema{
			"WORKS_AT": {From: map[string]bool{"Person": true}, To: map[string]bool{"Company": true}},
		},
	}
}

func assertSchemaEquivalent(t *testing.T, got *Schema) {
	t.Helper()
	if !got.AllowsNodeType("Person") || !got.AllowsNodeType("Company") {
		t.Errorf("loaded schema lost node types: %+v", got.Nodes)
	}
	if got.AllowsNodeType("Alien") {
		t.Errorf("loaded schema should reject unknown node types")
	}
	if !got.AllowsNodeProperty("Person", "name") {
		t.Errorf("loaded schema lost Person.name")
	}
	if got.AllowsNodeProperty("Person", "unexpected") {
		t.Errorf("loaded schema should reject unknown Person properties")
	}
	// Company declared no property set, so anything goes.
	if !got.AllowsNodeProperty("Company", "anything") {
		t.Errorf("unconstrained type must allow any property")
	}
	if !got.AllowsEdgeEndpoints("WORKS_AT", "Person", "Company") {
		t.Errorf("loaded schema lost WORKS_AT endpoint constraint")
	}
	if got.AllowsEdgeEndpoints("WORKS_AT", "Company", "Person") {
		t.Errorf("loaded schema should reject reversed WORKS_AT endpoints")
	}
}

func TestSchemaYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := SaveSchemaYAML(path, sampleSchema()); err != nil {
		t.Fatalf("SaveSchemaYAML: %v", err)
	}
	got, err := LoadSchemaYAML(path)
	if err != nil {
		t.Fatalf("LoadSchemaYAML: %v", err)
	}
	assertSchemaEquivalent(t, got)
}

func TestSchemaTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	if err := SaveSchemaTOML(path, sampleSchema()); err != nil {
		t.Fatalf("SaveSchemaTOML: %v", err)
	}
	got, err := LoadSchemaTOML(path)
	if err != nil {
		t.Fatalf("LoadSchemaTOML: %v", err)
	}
	assertSchemaEquivalent(t, got)
}

func TestSchemaYAMLToTOMLConversion(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "schema.yaml")
	tomlPath := filepath.Join(dir, "schema.toml")

	if err := SaveSchemaYAML(yamlPath, sampleSchema()); err != nil {
		t.Fatalf("SaveSchemaYAML: %v", err)
	}
	s, err := LoadSchemaYAML(yamlPath)
	if err != nil {
		t.Fatalf("LoadSchemaYAML: %v", err)
	}
	if err := SaveSchemaTOML(tomlPath, s); err != nil {
		t.Fatalf("SaveSchemaTOML: %v", err)
	}
	got, err := LoadSchemaTOML(tomlPath)
	if err != nil {
		t.Fatalf("LoadSchemaTOML: %v", err)
	}
	assertSchemaEquivalent(t, got)
}

func TestLoadSchemaMissingFile(t *testing.T) {
	if _, err := LoadSchemaYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected an error for a missing schema file")
	}
}
