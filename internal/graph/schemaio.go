package graph

import (
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk representation of a Schema: plain string keys
// and sets-as-lists, the shape both the YAML and TOML encoders round-trip
// without custom marshalers. An unconstrained (nil) set is omitted from the
// file and loads back as nil. In YAML an empty set is omitted the same way,
// so it also loads back as unconstrained.
type schemaFile struct {
	Nodes map[string]nodeTypeFile `yaml:"nodes" toml:"nodes"`
	Edges map[string]edgeTypeFile `yaml:"edges" toml:"edges"`
}

type nodeTypeFile struct {
	Properties []string `yaml:"properties,omitempty" toml:"properties"`
}

type edgeTypeFile struct {
	From []string `yaml:"from,omitempty" toml:"from"`
	To   []string `yaml:"to,omitempty" toml:"to"`
}

func toSchemaFile(s *Schema) schemaFile {
	out := schemaFile{
		Nodes: make(map[string]nodeTypeFile, len(s.Nodes)),
		Edges: make(map[string]edgeTypeFile, len(s.Edges)),
	}
	for t, nt := range s.Nodes {
		out.Nodes[t] = nodeTypeFile{Properties: setToSlice(nt.Properties)}
	}
	for t, et := range s.Edges {
		out.Edges[t] = edgeTypeFile{From: setToSlice(et.From), To: setToSlice(et.To)}
	}
	return out
}

func fromSchemaFile(f schemaFile) *Schema {
	s := &Schema{
		Nodes: make(map[string]NodeTypeSchema, len(f.Nodes)),
		Edges: make(map[string]EdgeTypeSchema, len(f.Edges)),
	}
	for t, nt := range f.Nodes {
		s.Nodes[t] = NodeTypeSchema{Properties: sliceToSet(nt.Properties)}
	}
	for t, et := range f.Edges {
		s.Edges[t] = EdgeTypeSchema{From: sliceToSet(et.From), To: sliceToSet(et.To)}
	}
	return s
}

func setToSlice(m map[string]bool) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sliceToSet(s []string) map[string]bool {
	if s == nil {
		return nil
	}
	out := make(map[string]bool, len(s))
	for _, v := range s {
		out[v] = true
	}
	return out
}

// LoadSchemaYAML reads a Schema from a YAML file of the form:
//
//	nodes:
//	  Person:
//	    properties: [name, age]
//	edges:
//	  KNOWS:
//	    from: [Person]
//	    to: [Person]
func LoadSchemaYAML(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr(CodeStorageError, "loadSchema", "read schema file", err)
	}
	var f schemaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, wrapErr(CodeStorageError, "loadSchema", "parse schema yaml", err)
	}
	return fromSchemaFile(f), nil
}

// SaveSchemaYAML writes s to path in the format LoadSchemaYAML reads.
func SaveSchemaYAML(path string, s *Schema) error {
	b, err := yaml.Marshal(toSchemaFile(s))
	if err != nil {
		return wrapErr(CodeStorageError, "saveSchema", "marshal schema yaml", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return wrapErr(CodeStorageError, "saveSchema", "write schema file", err)
	}
	return nil
}

// LoadSchemaTOML reads a Schema from a TOML file with the same shape as
// LoadSchemaYAML.
func LoadSchemaTOML(path string) (*Schema, error) {
	var f schemaFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, wrapErr(CodeStorageError, "loadSchema", "parse schema toml", err)
	}
	return fromSchemaFile(f), nil
}

// SaveSchemaTOML writes s to path in TOML form.
func SaveSchemaTOML(path string, s *Schema) error {
	file, err := os.Create(path)
	if err != nil {
		return wrapErr(CodeStorageError, "saveSchema", "create schema file", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(toSchemaFile(s)); err != nil {
		return wrapErr(CodeStorageError, "saveSchema", "marshal schema toml", err)
	}
	return nil
}
