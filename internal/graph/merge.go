package graph

import (
	"context"
)

func matchKeys(p Properties) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// MergeResult reports whether a merge matched an existing entity or created
// a new one, and which ON CREATE / ON MATCH property set was applied.
type MergeResult struct {
	Created bool
	Node    *Node
}

// MergeEdgeResult is the edge analogue of MergeResult.
type MergeEdgeResult struct {
	Created bool
	Edge    *Edge
}

// MergeNodeOptions describes a match-or-create node operation. Match
// narrows which existing nodes of Type qualify as a match; OnCreate
// is merged into Match to build a brand-new node's initial properties when
// no match exists; OnMatch is merged into the existing node's properties
// when one does.
type MergeNodeOptions struct {
	Type     string
	Match    Properties
	OnCreate Properties
	OnMatch  Properties
}

// MergeNode performs match-or-create: it looks for a node of opts.Type
// whose properties are a superset of opts.Match. If exactly one exists, its
// properties are updated with opts.OnMatch. If none exist, a new node is
// created with opts.Match merged with opts.OnCreate. If more than one node
// matches, MERGE_CONFLICT is returned naming every conflicting node.
func (db *DB) MergeNode(ctx context.Context, opts MergeNodeOptions) (*MergeResult, error) {
	var result *MergeResult
	err := db.Transaction(ctx, func(tx *Tx) error {
		r, err := mergeNodeTx(tx, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeNode is the Tx-scoped form, usable from inside a caller's own
// transaction. It runs under its own nested savepoint so a conflict or
// validation failure rolls back only the merge's own work, not the
// enclosing transaction.
func (t *Tx) MergeNode(opts MergeNodeOptions) (*MergeResult, error) {
	if err := t.checkActive("mergeNode"); err != nil {
		return nil, err
	}
	var result *MergeResult
	err := t.db.withTransaction(t.ctx, t, func(tx *Tx) error {
		r, err := mergeNodeTx(tx, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mergeNodeTx(t *Tx, opts MergeNodeOptions) (*MergeResult, error) {
	if len(opts.Match) == 0 {
		return nil, newErr(CodeEmptyMatch, "mergeNode", "match properties must not be empty")
	}

	if indexed, err := hasIndexForMergeKeys(t.ctx, t.ex(), opts.Type, opts.Match); err == nil && !indexed {
		t.db.log.Warn("merge running without a supporting property index",
			"code", "PERFORMANCE_WARNING", "nodeType", opts.Type, "matchKeys", matchKeys(opts.Match))
	}

	matches, err := findMatchingNodes(t.ctx, t.ex(), opts.Type, opts.Match)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		initial := Properties{}
		for k, v := range opts.Match {
			initial[k] = v
		}
		for k, v := range opts.OnCreate {
			initial[k] = v
		}
		n, err := createNode(t.ctx, t.ex(), t.db.currentSchema(), opts.Type, initial)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Created: true, Node: n}, nil

	case 1:
		n, err := updateNode(t.ctx, t.ex(), t.db.currentSchema(), matches[0].ID, opts.OnMatch, false)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Created: false, Node: n}, nil

	default:
		ids := make([]int64, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &Error{
			Code:             CodeMergeConflict,
			Op:               "mergeNode",
			Msg:              "more than one node matched",
			ConflictingNodes: ids,
			MatchProps:       opts.Match,
		}
	}
}

// findMatchingNodes returns every node of nodeType whose properties are a
// superset of match, i.e. match[k] == node.properties[k] for every k in
// match. This is expressed as a chain of json_extract equality predicates
// so SQLite does the filtering rather than Go.
func findMatchingNodes(ctx context.Context, ex execer, nodeType string, match Properties) ([]*Node, error) {
	// Built by hand (rather than via NodeQuery) since ex may be a *sql.Conn
	// scoped to a Tx rather than a *DB, and NodeQuery.Exec always runs
	// against db.ex().
	query := "SELECT id, type, properties, created_at, updated_at FROM nodes n WHERE 1=1"
	var args []any
	if nodeType != "" {
		query += " AND n.type = ?"
		args = append(args, nodeType)
	}
	for prop, val := range match {
		frag, wargs := compileWhere(whereClause{Prop: prop, Op: OpEq, Val: val})
		query += " AND " + frag
		args = append(args, wargs...)
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("mergeNode.match", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("mergeNode.match", err)
	}
	return out, nil
}

// MergeEdgeOptions describes a match-or-create edge operation, scoped to a
// fixed (From, To) pair: an edge "matches" only by type and endpoints,
// never by property value, since edges carry no identity beyond their
// endpoints and type. Properties is the base property set applied on both
// branches; OnCreate and OnMatch layer on top of it for their respective
// branch (later keys win).
type MergeEdgeOptions struct {
	Type       string
	From       int64
	To         int64
	Properties Properties
	OnCreate   Properties
	OnMatch    Properties
}

// MergeEdge performs match-or-create for an edge of opts.Type between
// opts.From and opts.To.
func (db *DB) MergeEdge(ctx context.Context, opts MergeEdgeOptions) (*MergeEdgeResult, error) {
	var result *MergeEdgeResult
	err := db.Transaction(ctx, func(tx *Tx) error {
		r, err := mergeEdgeTx(tx, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeEdge is the Tx-scoped form, isolated under its own nested savepoint
// the same way Tx.MergeNode is.
func (t *Tx) MergeEdge(opts MergeEdgeOptions) (*MergeEdgeResult, error) {
	if err := t.checkActive("mergeEdge"); err != nil {
		return nil, err
	}
	var result *MergeEdgeResult
	err := t.db.withTransaction(t.ctx, t, func(tx *Tx) error {
		r, err := mergeEdgeTx(tx, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mergeEdgeTx(t *Tx, opts MergeEdgeOptions) (*MergeEdgeResult, error) {
	rows, err := t.ex().QueryContext(t.ctx,
		`SELECT id FROM edges WHERE type = ? AND from_id = ? AND to_id = ?`,
		opts.Type, opts.From, opts.To)
	if err != nil {
		return nil, wrapStorageErr("mergeEdge.match", err)
	}
	var matchIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapStorageErr("mergeEdge.match", err)
		}
		matchIDs = append(matchIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapStorageErr("mergeEdge.match", err)
	}
	rows.Close()

	if len(matchIDs) > 1 {
		return nil, &Error{
			Code:             CodeMergeConflict,
			Op:               "mergeEdge",
			Msg:              "more than one edge matched",
			ConflictingNodes: matchIDs,
			MatchProps:       Properties{"type": opts.Type, "from": opts.From, "to": opts.To},
		}
	}

	if len(matchIDs) == 0 {
		initial := Properties{}
		for k, v := range opts.Properties {
			initial[k] = v
		}
		for k, v := range opts.OnCreate {
			initial[k] = v
		}
		e, err := createEdge(t.ctx, t.ex(), t.db.currentSchema(), opts.Type, opts.From, opts.To, initial)
		if err != nil {
			return nil, err
		}
		return &MergeEdgeResult{Created: true, Edge: e}, nil
	}
	existingID := matchIDs[0]

	if len(opts.Properties) > 0 || len(opts.OnMatch) > 0 {
		e, err := getEdge(t.ctx, t.ex(), existingID)
		if err != nil {
			return nil, err
		}
		merged := e.Properties
		if merged == nil {
			merged = Properties{}
		}
		for k, v := range opts.Properties {
			merged[k] = v
		}
		for k, v := range opts.OnMatch {
			merged[k] = v
		}
		propJSON, err := marshalProperties(merged)
		if err != nil {
			return nil, wrapErr(CodeInvalidProperties, "mergeEdge", "marshal properties", err)
		}
		if _, err := t.ex().ExecContext(t.ctx, `UPDATE edges SET properties = ? WHERE id = ?`, propJSON, e.ID); err != nil {
			return nil, wrapStorageErr("mergeEdge", err)
		}
		e.Properties = merged
		return &MergeEdgeResult{Created: false, Edge: e}, nil
	}

	e, err := getEdge(t.ctx, t.ex(), existingID)
	if err != nil {
		return nil, err
	}
	return &MergeEdgeResult{Created: false, Edge: e}, nil
}
