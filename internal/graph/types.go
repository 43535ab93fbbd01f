// Package graph implements an embedded property-graph database layered on
// top of SQLite. Callers model their domain as typed nodes with key-value
// properties and typed directed edges between nodes, then query that graph
// with a fluent node filter, a bounded-BFS traversal walker, and idempotent
// MERGE (match-or-create) operations.
package graph

import "time"

// Value is any JSON-representable property value: nil, bool, float64/int64,
// string, []Value (ordered, possibly heterogeneous), or map[string]Value.
type Value = any

// Properties is a node or edge's property bag.
type Properties map[string]Value

// Node is a persisted, typed vertex.
type Node struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Edge is a persisted, typed, directed link between two nodes.
type Edge struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	From       int64      `json:"from"`
	To         int64      `json:"to"`
	Properties Properties `json:"properties,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NodeTypeSchema constrains one node type's allowed property names.
type NodeTypeSchema struct {
	Properties map[string]bool
}

// EdgeTypeSchema constrains one edge type's allowed endpoint node types.
type EdgeTypeSchema struct {
	From map[string]bool // nil means unconstrained
	To   map[string]bool // nil means unconstrained
}

// Schema is the optional, caller-supplied structure declaring permitted
// node/edge types and their expected properties. A nil *Schema means any
// string type is accepted. Schema is a plain data value, not a class
// hierarchy, per the design notes: validate it by lookup.
type Schema struct {
	Nodes map[string]NodeTypeSchema `yaml:"nodes" toml:"nodes"`
	Edges map[string]EdgeTypeSchema `yaml:"edges" toml:"edges"`
}

// AllowsNodeType reports whether s permits the given node type. A nil
// schema or a schema with no Nodes map permits everything.
func (s *Schema) AllowsNodeType(t string) bool {
	if s == nil || s.Nodes == nil {
		return true
	}
	_, ok := s.Nodes[t]
	return ok
}

// AllowsNodeProperty reports whether property p is expected on node type t.
// An unconstrained type (no Properties set) or an absent schema allows any
// property name.
func (s *Schema) AllowsNodeProperty(t, p string) bool {
	if s == nil || s.Nodes == nil {
		return true
	}
	nt, ok := s.Nodes[t]
	if !ok || nt.Properties == nil {
		return true
	}
	return nt.Properties[p]
}

// AllowsEdgeType reports whether s permits the given edge type.
func (s *Schema) AllowsEdgeType(t string) bool {
	if s == nil || s.Edges == nil {
		return true
	}
	_, ok := s.Edges[t]
	return ok
}

// AllowsEdgeEndpoints reports whether an edge of type t may run fromType -> toType.
func (s *Schema) AllowsEdgeEndpoints(t, fromType, toType string) bool {
	if s == nil || s.Edges == nil {
		return true
	}
	et, ok := s.Edges[t]
	if !ok {
		return true
	}
	if et.From != nil && !et.From[fromType] {
		return false
	}
	if et.To != nil && !et.To[toType] {
		return false
	}
	return true
}

// PropertyIndex describes a secondary index over a JSON-extracted node
// property, scoped to a node type and optionally unique.
type PropertyIndex struct {
	Name   string
	Type   string
	Prop   string
	Unique bool
}

// IndexName returns the deterministic name for an index on (nodeType, prop).
func IndexName(nodeType, prop string) string {
	return "idx_merge_" + nodeType + "_" + prop
}

// Direction is a traversal/join direction relative to the node being expanded.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// CompareOp is a node-query comparison operator.
type CompareOp string

const (
	OpEq   CompareOp = "eq"
	OpNe   CompareOp = "ne"
	OpGt   CompareOp = "gt"
	OpGte  CompareOp = "gte"
	OpLt   CompareOp = "lt"
	OpLte  CompareOp = "lte"
	OpLike CompareOp = "like"
	OpIn   CompareOp = "in"
)
