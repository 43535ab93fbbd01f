package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ex returns the execer operations should run against: the Tx's
// connection when called as a method on *Tx, or the DB's pooled *sql.DB
// when called directly on *DB. Every CRUD entry point below has both forms.
func (db *DB) ex() execer { return db.sql }
func (t *Tx) ex() execer { return t.conn }

func marshalProperties(p Properties) (string, error) {
	if p == nil {
		p = Properties{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func unmarshalProperties(s string) (Properties, error) {
	if s == "" {
		return Properties{}, nil
	}
	var p Properties
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return p, nil
}

func validateNodeInput(schema *Schema, nodeType string, props Properties) error {
	if nodeType == "" {
		return newErr(CodeInvalidType, "createNode", "node type must not be empty")
	}
	if !schema.AllowsNodeType(nodeType) {
		return newErr(CodeInvalidType, "createNode", fmt.Sprintf("node type %q is not permitted by schema", nodeType))
	}
	for k := range props {
		if !schema.AllowsNodeProperty(nodeType, k) {
			return newErr(CodeInvalidProperties, "createNode", fmt.Sprintf("property %q is not permitted on node type %q", k, nodeType))
		}
	}
	return nil
}

// CreateNode inserts a new node, validating its type/properties against the
// installed schema (if any).
func (db *DB) CreateNode(ctx context.Context, nodeType string, props Properties) (*Node, error) {
	return createNode(ctx, db.ex(), db.currentSchema(), nodeType, props)
}

// CreateNode inserts a new node inside the transaction.
func (t *Tx) CreateNode(nodeType string, props Properties) (*Node, error) {
	if err := t.checkActive("createNode"); err != nil {
		return nil, err
	}
	return createNode(t.ctx, t.ex(), t.db.currentSchema(), nodeType, props)
}

func createNode(ctx context.Context, ex execer, schema *Schema, nodeType string, props Properties) (*Node, error) {
	if err := validateNodeInput(schema, nodeType, props); err != nil {
		return nil, err
	}
	propJSON, err := marshalProperties(props)
	if err != nil {
		return nil, wrapErr(CodeInvalidProperties, "createNode", "marshal properties", err)
	}
	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx,
		`INSERT INTO nodes (type, properties, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		nodeType, propJSON, now.Unix(), now.Unix())
	if err != nil {
		return nil, wrapStorageErr("createNode", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStorageErr("createNode", err)
	}
	return &Node{ID: id, Type: nodeType, Properties: props, CreatedAt: now, UpdatedAt: now}, nil
}

func scanNode(row *sql.Row) (*Node, error) {
	var n Node
	var propJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(&n.ID, &n.Type, &propJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newErr(CodeNotFound, "getNode", "node not found")
		}
		return nil, wrapStorageErr("getNode", err)
	}
	props, err := unmarshalProperties(propJSON)
	if err != nil {
		return nil, wrapErr(CodeStorageError, "getNode", "unmarshal properties", err)
	}
	n.Properties = props
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &n, nil
}

// GetNode loads a node by ID.
func (db *DB) GetNode(ctx context.Context, id int64) (*Node, error) {
	return getNode(ctx, db.ex(), id)
}

// GetNode loads a node by ID inside the transaction.
func (t *Tx) GetNode(id int64) (*Node, error) {
	if err := t.checkActive("getNode"); err != nil {
		return nil, err
	}
	return getNode(t.ctx, t.ex(), id)
}

func getNode(ctx context.Context, ex execer, id int64) (*Node, error) {
	if id <= 0 {
		return nil, newErr(CodeInvalidID, "getNode", "node id must be a positive integer")
	}
	row := ex.QueryRowContext(ctx,
		`SELECT id, type, properties, created_at, updated_at FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// UpdateNode merges (or, if replace is true, replaces) a node's properties
// and persists the new updated_at timestamp.
func (db *DB) UpdateNode(ctx context.Context, id int64, props Properties, replace bool) (*Node, error) {
	return updateNode(ctx, db.ex(), db.currentSchema(), id, props, replace)
}

// UpdateNode merges (or replaces) a node's properties inside the transaction.
func (t *Tx) UpdateNode(id int64, props Properties, replace bool) (*Node, error) {
	if err := t.checkActive("updateNode"); err != nil {
		return nil, err
	}
	return updateNode(t.ctx, t.ex(), t.db.currentSchema(), id, props, replace)
}

func updateNode(ctx context.Context, ex execer, schema *Schema, id int64, props Properties, replace bool) (*Node, error) {
	existing, err := getNode(ctx, ex, id)
	if err != nil {
		return nil, err
	}

	merged := existing.Properties
	if replace || merged == nil {
		merged = Properties{}
	}
	for k, v := range props {
		if !schema.AllowsNodeProperty(existing.Type, k) {
			return nil, newErr(CodeInvalidProperties, "updateNode", fmt.Sprintf("property %q is not permitted on node type %q", k, existing.Type))
		}
		merged[k] = v
	}

	propJSON, err := marshalProperties(merged)
	if err != nil {
		return nil, wrapErr(CodeInvalidProperties, "updateNode", "marshal properties", err)
	}
	now := time.Now().UTC()
	if _, err := ex.ExecContext(ctx,
		`UPDATE nodes SET properties = ?, updated_at = ? WHERE id = ?`,
		propJSON, now.Unix(), id); err != nil {
		return nil, wrapStorageErr("updateNode", err)
	}

	existing.Properties = merged
	existing.UpdatedAt = now
	return existing, nil
}

// DeleteNode removes a node and, by foreign-key cascade, every edge
// touching it.
func (db *DB) DeleteNode(ctx context.Context, id int64) error {
	return deleteNode(ctx, db.ex(), id)
}

// DeleteNode removes a node inside the transaction.
func (t *Tx) DeleteNode(id int64) error {
	if err := t.checkActive("deleteNode"); err != nil {
		return err
	}
	return deleteNode(t.ctx, t.ex(), id)
}

func deleteNode(ctx context.Context, ex execer, id int64) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return wrapStorageErr("deleteNode", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorageErr("deleteNode", err)
	}
	if n == 0 {
		return newErr(CodeNotFound, "deleteNode", "node not found")
	}
	return nil
}

func validateEdgeInput(schema *Schema, edgeType string, fromType, toType string) error {
	if edgeType == "" {
		return newErr(CodeInvalidType, "createEdge", "edge type must not be empty")
	}
	if !schema.AllowsEdgeType(edgeType) {
		return newErr(CodeInvalidType, "createEdge", "edge type is not permitted by schema")
	}
	if !schema.AllowsEdgeEndpoints(edgeType, fromType, toType) {
		return newErr(CodeInvalidType, "createEdge", "edge endpoints are not permitted for this edge type")
	}
	return nil
}

// CreateEdge inserts a new directed edge between two existing nodes.
func (db *DB) CreateEdge(ctx context.Context, edgeType string, from, to int64, props Properties) (*Edge, error) {
	return createEdge(ctx, db.ex(), db.currentSchema(), edgeType, from, to, props)
}

// CreateEdge inserts a new directed edge inside the transaction.
func (t *Tx) CreateEdge(edgeType string, from, to int64, props Properties) (*Edge, error) {
	if err := t.checkActive("createEdge"); err != nil {
		return nil, err
	}
	return createEdge(t.ctx, t.ex(), t.db.currentSchema(), edgeType, from, to, props)
}

func createEdge(ctx context.Context, ex execer, schema *Schema, edgeType string, from, to int64, props Properties) (*Edge, error) {
	fromNode, err := getNode(ctx, ex, from)
	if err != nil {
		if code, ok := CodeOf(err); ok && code == CodeNotFound {
			return nil, newErr(CodeNotFound, "createEdge", "from node not found")
		}
		return nil, err
	}
	toNode, err := getNode(ctx, ex, to)
	if err != nil {
		if code, ok := CodeOf(err); ok && code == CodeNotFound {
			return nil, newErr(CodeNotFound, "createEdge", "to node not found")
		}
		return nil, err
	}
	if err := validateEdgeInput(schema, edgeType, fromNode.Type, toNode.Type); err != nil {
		return nil, err
	}

	var propJSON sql.NullString
	if len(props) > 0 {
		s, err := marshalProperties(props)
		if err != nil {
			return nil, wrapErr(CodeInvalidProperties, "createEdge", "marshal properties", err)
		}
		propJSON = sql.NullString{String: s, Valid: true}
	}

	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx,
		`INSERT INTO edges (type, from_id, to_id, properties, created_at) VALUES (?, ?, ?, ?, ?)`,
		edgeType, from, to, propJSON, now.Unix())
	if err != nil {
		return nil, wrapStorageErr("createEdge", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStorageErr("createEdge", err)
	}
	return &Edge{ID: id, Type: edgeType, From: from, To: to, Properties: props, CreatedAt: now}, nil
}

func scanEdge(row *sql.Row) (*Edge, error) {
	var e Edge
	var propJSON sql.NullString
	var createdAt int64
	if err := row.Scan(&e.ID, &e.Type, &e.From, &e.To, &propJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newErr(CodeNotFound, "getEdge", "edge not found")
		}
		return nil, wrapStorageErr("getEdge", err)
	}
	if propJSON.Valid {
		props, err := unmarshalProperties(propJSON.String)
		if err != nil {
			return nil, wrapErr(CodeStorageError, "getEdge", "unmarshal properties", err)
		}
		e.Properties = props
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

// GetEdge loads an edge by ID.
func (db *DB) GetEdge(ctx context.Context, id int64) (*Edge, error) {
	return getEdge(ctx, db.ex(), id)
}

// GetEdge loads an edge by ID inside the transaction.
func (t *Tx) GetEdge(id int64) (*Edge, error) {
	if err := t.checkActive("getEdge"); err != nil {
		return nil, err
	}
	return getEdge(t.ctx, t.ex(), id)
}

func getEdge(ctx context.Context, ex execer, id int64) (*Edge, error) {
	row := ex.QueryRowContext(ctx,
		`SELECT id, type, from_id, to_id, properties, created_at FROM edges WHERE id = ?`, id)
	return scanEdge(row)
}

// DeleteEdge removes an edge.
func (db *DB) DeleteEdge(ctx context.Context, id int64) error {
	return deleteEdge(ctx, db.ex(), id)
}

// DeleteEdge removes an edge inside the transaction.
func (t *Tx) DeleteEdge(id int64) error {
	if err := t.checkActive("deleteEdge"); err != nil {
		return err
	}
	return deleteEdge(t.ctx, t.ex(), id)
}

func deleteEdge(ctx context.Context, ex execer, id int64) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return wrapStorageErr("deleteEdge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorageErr("deleteEdge", err)
	}
	if n == 0 {
		return newErr(CodeNotFound, "deleteEdge", "edge not found")
	}
	return nil
}
