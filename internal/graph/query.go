package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// whereClause is one property comparison in a NodeQuery's filter chain.
type whereClause struct {
	Prop string
	Op   CompareOp
	Val  Value
}

// connectedClause narrows a NodeQuery to nodes reachable by one hop of a
// given edge type and direction, optionally requiring the far endpoint to
// be of a specific node type.
type connectedClause struct {
	OtherType string
	EdgeType  string
	Dir       Direction
}

// orderClause is one ORDER BY term, keyed by JSON property.
type orderClause struct {
	Prop string
	Desc bool
}

// NodeQuery is an immutable, chainable plan for filtering nodes. Every
// builder method returns a new NodeQuery value; the receiver is never
// mutated, so a partially built query can be safely reused as a base for
// several branches.
type NodeQuery struct {
	db        *DB
	nodeType  string
	wheres    []whereClause
	connected []connectedClause
	order     []orderClause
	limitN    int
	hasLimit  bool
	offsetN   int
	hasOffset bool
	filters   []func(*Node) bool
}

// Query starts a new NodeQuery scoped to the given node type. An empty type
// matches nodes of any type.
func (db *DB) Query(nodeType string) NodeQuery {
	return NodeQuery{db: db, nodeType: nodeType}
}

func (q NodeQuery) clone() NodeQuery {
	out := q
	out.wheres = append([]whereClause(nil), q.wheres...)
	out.connected = append([]connectedClause(nil), q.connected...)
	out.order = append([]orderClause(nil), q.order...)
	out.filters = append([]func(*Node) bool(nil), q.filters...)
	return out
}

// Where adds a property comparison. Repeated calls AND together.
func (q NodeQuery) Where(prop string, op CompareOp, val Value) NodeQuery {
	out := q.clone()
	out.wheres = append(out.wheres, whereClause{Prop: prop, Op: op, Val: val})
	return out
}

// WhereProps adds an equality comparison for every key in props, ANDed
// together. Keys are applied in sorted order so the compiled SQL is stable
// for a given property set.
func (q NodeQuery) WhereProps(props Properties) NodeQuery {
	out := q.clone()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.wheres = append(out.wheres, whereClause{Prop: k, Op: OpEq, Val: props[k]})
	}
	return out
}

// ConnectedTo narrows to nodes with at least one edge of edgeType in the
// given direction, whose far endpoint is of otherType (empty matches any
// node type).
func (q NodeQuery) ConnectedTo(otherType, edgeType string, dir Direction) NodeQuery {
	out := q.clone()
	out.connected = append(out.connected, connectedClause{OtherType: otherType, EdgeType: edgeType, Dir: dir})
	return out
}

// Filter adds a post-materialization predicate, applied to each node after
// the storage query returns. It cannot be pushed into the compiled SQL, so
// it never affects Count/Exists, only Exec/First.
func (q NodeQuery) Filter(fn func(*Node) bool) NodeQuery {
	out := q.clone()
	out.filters = append(out.filters, fn)
	return out
}

// OrderBy appends an ORDER BY term over a JSON-extracted property.
func (q NodeQuery) OrderBy(prop string, desc bool) NodeQuery {
	out := q.clone()
	out.order = append(out.order, orderClause{Prop: prop, Desc: desc})
	return out
}

// Limit caps the number of rows returned.
func (q NodeQuery) Limit(n int) NodeQuery {
	out := q.clone()
	out.limitN = n
	out.hasLimit = true
	return out
}

// Offset skips the first n matching rows.
func (q NodeQuery) Offset(n int) NodeQuery {
	out := q.clone()
	out.offsetN = n
	out.hasOffset = true
	return out
}

// compile renders the query plan to parameterized SQL. Every ConnectedTo
// clause becomes its own EXISTS(...) subquery against edges so that
// multiple clauses combine as independent constraints rather than a single
// join that could silently under- or over-count matches.
func (q NodeQuery) compile() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT id, type, properties, created_at, updated_at FROM nodes n WHERE 1=1")

	if q.nodeType != "" {
		sb.WriteString(" AND n.type = ?")
		args = append(args, q.nodeType)
	}

	for _, w := range q.wheres {
		frag, wargs := compileWhere(w)
		sb.WriteString(" AND ")
		sb.WriteString(frag)
		args = append(args, wargs...)
	}

	for _, c := range q.connected {
		frag, cargs := compileConnected(c)
		sb.WriteString(" AND ")
		sb.WriteString(frag)
		args = append(args, cargs...)
	}

	if len(q.order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.order {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("json_extract(n.properties, '$.%s')", o.Prop))
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}

	if q.hasLimit {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.limitN)
	}
	if q.hasOffset {
		if !q.hasLimit {
			sb.WriteString(" LIMIT -1")
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, q.offsetN)
	}

	return sb.String(), args
}

func compileWhere(w whereClause) (string, []any) {
	col := fmt.Sprintf("json_extract(n.properties, '$.%s')", w.Prop)
	switch w.Op {
	case OpEq:
		return col + " = ?", []any{w.Val}
	case OpNe:
		return col + " != ?", []any{w.Val}
	case OpGt:
		return col + " > ?", []any{w.Val}
	case OpGte:
		return col + " >= ?", []any{w.Val}
	case OpLt:
		return col + " < ?", []any{w.Val}
	case OpLte:
		return col + " <= ?", []any{w.Val}
	case OpLike:
		return col + " LIKE ?", []any{w.Val}
	case OpIn:
		vals, _ := w.Val.([]Value)
		if len(vals) == 0 {
			return "0", nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")
		return col + " IN (" + placeholders + ")", vals
	default:
		return "1=1", nil
	}
}

// compileConnected renders one ConnectedTo clause as a correlated EXISTS
// subquery. Modeling "both" as a single subquery with an OR across from/to
// rather than two separate queries halves the query count, and a correlated
// EXISTS never multiplies the outer row set in the first place, so no
// DISTINCT is needed to de-duplicate a node reachable via two edges.
func compileConnected(c connectedClause) (string, []any) {
	var endpoint string
	var args []any
	switch c.Dir {
	case DirOut:
		endpoint = "e.from_id = n.id"
	case DirIn:
		endpoint = "e.to_id = n.id"
	default: // DirBoth
		endpoint = "(e.from_id = n.id OR e.to_id = n.id)"
	}

	var join, farCol string
	if c.OtherType != "" {
		switch c.Dir {
		case DirOut:
			farCol = "e.to_id"
		case DirIn:
			farCol = "e.from_id"
		default:
			farCol = "(CASE WHEN e.from_id = n.id THEN e.to_id ELSE e.from_id END)"
		}
		join = fmt.Sprintf(" JOIN nodes m ON m.id = %s", farCol)
	}

	frag := "EXISTS (SELECT 1 FROM edges e" + join + " WHERE " + endpoint
	if c.EdgeType != "" {
		frag += " AND e.type = ?"
		args = append(args, c.EdgeType)
	}
	if c.OtherType != "" {
		frag += " AND m.type = ?"
		args = append(args, c.OtherType)
	}
	frag += ")"
	return frag, args
}

// Exec runs the query and returns every matching node.
func (q NodeQuery) Exec(ctx context.Context) ([]*Node, error) {
	sqlStr, args := q.compile()
	rows, err := q.db.ex().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, wrapStorageErr("query.exec", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, err
		}
		if q.passesFilters(n) {
			out = append(out, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("query.exec", err)
	}
	return out, nil
}

func (q NodeQuery) passesFilters(n *Node) bool {
	for _, fn := range q.filters {
		if !fn(n) {
			return false
		}
	}
	return true
}

func scanNodeRow(rows interface {
	Scan(dest ...any) error
}) (*Node, error) {
	var n Node
	var propJSON string
	var createdAt, updatedAt int64
	if err := rows.Scan(&n.ID, &n.Type, &propJSON, &createdAt, &updatedAt); err != nil {
		return nil, wrapStorageErr("query.scan", err)
	}
	props, err := unmarshalProperties(propJSON)
	if err != nil {
		return nil, wrapErr(CodeStorageError, "query.scan", "unmarshal properties", err)
	}
	n.Properties = props
	n.CreatedAt = timeFromUnix(createdAt)
	n.UpdatedAt = timeFromUnix(updatedAt)
	return &n, nil
}

// First runs the query with an implicit LIMIT 1 and returns the first
// match, or a NOT_FOUND error if there is none.
func (q NodeQuery) First(ctx context.Context) (*Node, error) {
	nodes, err := q.Limit(1).Exec(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, newErr(CodeNotFound, "query.first", "no node matched the query")
	}
	return nodes[0], nil
}

// Count returns the number of matching nodes without materializing them.
func (q NodeQuery) Count(ctx context.Context) (int64, error) {
	sqlStr, args := q.compile()
	countSQL := "SELECT COUNT(*) FROM (" + sqlStr + ")"
	row := q.db.ex().QueryRowContext(ctx, countSQL, args...)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, wrapStorageErr("query.count", err)
	}
	return n, nil
}

// Exists reports whether any node matches the query.
func (q NodeQuery) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
