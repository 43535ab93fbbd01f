package graph

import (
	"context"
	"fmt"
	"sort"
)

// TraversalOptions configures a bounded breadth-first walk. The zero value
// is not directly usable: MaxDepth must be set to at least 1.
type TraversalOptions struct {
	// EdgeType restricts traversal to one edge type. Empty means any type.
	EdgeType string
	Dir      Direction

	// MinDepth is the minimum hop count (inclusive) a node must be reached
	// at to appear in results. Defaults to 1 when zero.
	MinDepth int

	// MaxDepth bounds how many hops from the start node traversal explores.
	// Required to be >= 1 and >= MinDepth; INVALID_DEPTH otherwise.
	MaxDepth int

	// NodeTypeFilter, if set, skips any reached node whose type does not
	// match, both for emission and for further expansion from that node.
	NodeTypeFilter string

	// Unique controls whether a node already reached is re-emitted when a
	// later edge reaches it again. Re-expansion from an already-reached node
	// never happens either way, which is what keeps the walk cycle-safe
	// regardless of Unique. Defaults to true when UniqueSet is false; set
	// UniqueSet to override with Unique: false.
	Unique    bool
	UniqueSet bool

	// UserFilter, if set, is applied to each materialized node after the
	// walk completes; failing nodes are dropped from the result without
	// affecting which nodes were reachable for expansion purposes.
	UserFilter func(*Node) bool
}

func (o TraversalOptions) minDepth() int {
	if o.MinDepth <= 0 {
		return 1
	}
	return o.MinDepth
}

func (o TraversalOptions) unique() bool {
	if !o.UniqueSet {
		return true
	}
	return o.Unique
}

func (o TraversalOptions) validate(op string) error {
	if o.MaxDepth < 1 {
		return newErr(CodeInvalidDepth, op, fmt.Sprintf("maxDepth must be >= 1, got %d", o.MaxDepth))
	}
	if o.minDepth() > o.MaxDepth || o.MinDepth < 0 {
		return newErr(CodeInvalidDepth, op, fmt.Sprintf("minDepth (%d) must be >= 0 and <= maxDepth (%d)", o.MinDepth, o.MaxDepth))
	}
	return nil
}

// adjacentRow is one edge row relevant to expanding a node during traversal.
type adjacentRow struct {
	edgeID   int64
	neighbor int64
}

func (db *DB) neighbors(ctx context.Context, nodeID int64, edgeType string, dir Direction) ([]adjacentRow, error) {
	typeFilter := ""
	if edgeType != "" {
		typeFilter = " AND type = ?"
	}

	var query string
	var args []any
	switch dir {
	case DirOut:
		query = "SELECT id, to_id FROM edges WHERE from_id = ?" + typeFilter
		args = []any{nodeID}
		if edgeType != "" {
			args = append(args, edgeType)
		}
	case DirIn:
		query = "SELECT id, from_id FROM edges WHERE to_id = ?" + typeFilter
		args = []any{nodeID}
		if edgeType != "" {
			args = append(args, edgeType)
		}
	default: // DirBoth
		query = "SELECT id, to_id FROM edges WHERE from_id = ?" + typeFilter +
			" UNION ALL SELECT id, from_id FROM edges WHERE to_id = ? AND from_id != to_id" + typeFilter
		args = []any{nodeID}
		if edgeType != "" {
			args = append(args, edgeType)
		}
		args = append(args, nodeID)
		if edgeType != "" {
			args = append(args, edgeType)
		}
	}

	rows, err := db.ex().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("traverse.neighbors", err)
	}
	defer rows.Close()

	var out []adjacentRow
	for rows.Next() {
		var r adjacentRow
		if err := rows.Scan(&r.edgeID, &r.neighbor); err != nil {
			return nil, wrapStorageErr("traverse.neighbors", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("traverse.neighbors", err)
	}
	return out, nil
}

func (db *DB) requireStart(ctx context.Context, id int64, op string) error {
	if _, err := getNode(ctx, db.ex(), id); err != nil {
		if code, ok := CodeOf(err); ok && code == CodeNotFound {
			return newErr(CodeStartNotFound, op, "start node not found")
		}
		return err
	}
	return nil
}

// bfsResult is the shared machinery behind ToArray, ToPaths and ShortestPath:
// a single breadth-first walk that records visitation order, parent
// pointers and depth, honoring EdgeType/Dir/NodeTypeFilter/MinDepth/MaxDepth.
// expanded (not Unique) is what makes the walk cycle-safe: a node is never
// re-enqueued once reached, independent of whether duplicate emission is
// requested.
type bfsResult struct {
	firstOrder []int64 // each reached node once, in first-discovery order
	emitOrder  []int64 // what ToArray reports: duplicated per edge when !Unique
	parent     map[int64]int64
	depth      map[int64]int
}

func (db *DB) bfs(ctx context.Context, startID int64, opts TraversalOptions) (*bfsResult, error) {
	expanded := map[int64]bool{startID: true}
	parent := map[int64]int64{}
	depth := map[int64]int{startID: 0}
	queue := []int64{startID}
	res := &bfsResult{parent: parent, depth: depth}

	minDepth := opts.minDepth()
	unique := opts.unique()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= opts.MaxDepth {
			continue
		}
		adj, err := db.neighbors(ctx, cur, opts.EdgeType, opts.Dir)
		if err != nil {
			return nil, err
		}
		for _, a := range adj {
			d := depth[cur] + 1
			if already := expanded[a.neighbor]; already {
				// Cycle safety (re-expansion guard) is unconditional; Unique
				// only controls whether this already-reached node is
				// reported again for the edge that just re-found it.
				if !unique && d >= minDepth {
					res.emitOrder = append(res.emitOrder, a.neighbor)
				}
				continue
			}
			if opts.NodeTypeFilter != "" {
				n, err := getNode(ctx, db.ex(), a.neighbor)
				if err != nil {
					return nil, err
				}
				if n.Type != opts.NodeTypeFilter {
					continue
				}
			}
			expanded[a.neighbor] = true
			parent[a.neighbor] = cur
			depth[a.neighbor] = d
			if d >= minDepth {
				res.firstOrder = append(res.firstOrder, a.neighbor)
				res.emitOrder = append(res.emitOrder, a.neighbor)
			}
			queue = append(queue, a.neighbor)
		}
	}
	return res, nil
}

// ToArray performs a bounded, cycle-safe breadth-first traversal from
// startID and returns every reachable node within MaxDepth hops, in BFS
// visitation order. A node already reached is never re-expanded, which is
// what makes the walk safe against cycles regardless of depth.
func (db *DB) ToArray(ctx context.Context, startID int64, opts TraversalOptions) ([]*Node, error) {
	if err := opts.validate("traverse.toArray"); err != nil {
		return nil, err
	}
	if err := db.requireStart(ctx, startID, "traverse.toArray"); err != nil {
		return nil, err
	}

	res, err := db.bfs(ctx, startID, opts)
	if err != nil {
		return nil, err
	}

	out := make([]*Node, 0, len(res.emitOrder))
	for _, id := range res.emitOrder {
		n, err := getNode(ctx, db.ex(), id)
		if err != nil {
			return nil, err
		}
		if opts.UserFilter != nil && !opts.UserFilter(n) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Path is one node-to-node walk, as an ordered list of node IDs including
// both endpoints.
type Path struct {
	NodeIDs []int64
}

func reconstructPath(parent map[int64]int64, start, end int64) []int64 {
	var rev []int64
	for cur := end; ; {
		rev = append(rev, cur)
		if cur == start {
			break
		}
		cur = parent[cur]
	}
	out := make([]int64, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// ToPaths reconstructs, for every node reached by ToArray, the unique
// shortest path from startID to it by walking the BFS parent map backward
// from each reached node and reversing. When a node is reachable by several
// equally-short routes, only the first-discovered one is kept, since BFS
// parent pointers record just one predecessor per node.
func (db *DB) ToPaths(ctx context.Context, startID int64, opts TraversalOptions) ([]*Path, error) {
	if err := opts.validate("traverse.toPaths"); err != nil {
		return nil, err
	}
	if err := db.requireStart(ctx, startID, "traverse.toPaths"); err != nil {
		return nil, err
	}

	res, err := db.bfs(ctx, startID, opts)
	if err != nil {
		return nil, err
	}

	out := make([]*Path, 0, len(res.firstOrder))
	for _, id := range res.firstOrder {
		if opts.UserFilter != nil {
			n, err := getNode(ctx, db.ex(), id)
			if err != nil {
				return nil, err
			}
			if !opts.UserFilter(n) {
				continue
			}
		}
		out = append(out, &Path{NodeIDs: reconstructPath(res.parent, startID, id)})
	}
	return out, nil
}

// ShortestPath returns the shortest hop-count path between startID and
// endID within MaxDepth hops, using parent-pointer reconstruction over a
// breadth-first search. Ties are broken by first discovery order, which
// falls out of BFS naturally. If no such path exists, NOT_FOUND is
// returned.
func (db *DB) ShortestPath(ctx context.Context, startID, endID int64, opts TraversalOptions) (*Path, error) {
	if err := opts.validate("traverse.shortestPath"); err != nil {
		return nil, err
	}
	if err := db.requireStart(ctx, startID, "traverse.shortestPath"); err != nil {
		return nil, err
	}

	if startID == endID {
		return &Path{NodeIDs: []int64{startID}}, nil
	}

	res, err := db.bfs(ctx, startID, opts)
	if err != nil {
		return nil, err
	}
	if _, ok := res.depth[endID]; !ok {
		return nil, newErr(CodeNotFound, "traverse.shortestPath", "no path found within maxDepth")
	}
	return &Path{NodeIDs: reconstructPath(res.parent, startID, endID)}, nil
}

// PathOptions configures Paths.
type PathOptions struct {
	TraversalOptions
	MaxPaths int // 0 means unbounded
}

// Paths enumerates every simple path (no repeated node) from startID to
// endID within MaxDepth hops via depth-limited depth-first search, each
// branch carrying its own visited set so sibling branches don't interfere.
// DFS discovers paths in neighbor order, not length order, so the collected
// results are sorted shortest-first (stably, preserving discovery order
// among equal lengths) before being returned. Enumeration stops early once
// MaxPaths results have been found, if MaxPaths > 0.
func (db *DB) Paths(ctx context.Context, startID, endID int64, opts PathOptions) ([]*Path, error) {
	if err := opts.validate("traverse.paths"); err != nil {
		return nil, err
	}
	if err := db.requireStart(ctx, startID, "traverse.paths"); err != nil {
		return nil, err
	}

	var results []*Path
	visited := map[int64]bool{startID: true}
	stack := []int64{startID}

	var dfs func(cur int64) error
	dfs = func(cur int64) error {
		if opts.MaxPaths > 0 && len(results) >= opts.MaxPaths {
			return nil
		}
		if cur == endID && len(stack)-1 >= opts.minDepth() {
			results = append(results, &Path{NodeIDs: append([]int64(nil), stack...)})
			return nil
		}
		if len(stack)-1 >= opts.MaxDepth {
			return nil
		}
		adj, err := db.neighbors(ctx, cur, opts.EdgeType, opts.Dir)
		if err != nil {
			return err
		}
		for _, a := range adj {
			if opts.MaxPaths > 0 && len(results) >= opts.MaxPaths {
				return nil
			}
			if visited[a.neighbor] {
				continue
			}
			if opts.NodeTypeFilter != "" {
				n, err := getNode(ctx, db.ex(), a.neighbor)
				if err != nil {
					return err
				}
				if n.Type != opts.NodeTypeFilter {
					continue
				}
			}
			visited[a.neighbor] = true
			stack = append(stack, a.neighbor)
			if err := dfs(a.neighbor); err != nil {
				return err
			}
			stack = stack[:len(stack)-1]
			visited[a.neighbor] = false
		}
		return nil
	}

	if err := dfs(startID); err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return len(results[i].NodeIDs) < len(results[j].NodeIDs)
	})
	return results, nil
}

// Traversal is a fluent, chainable plan for a bounded breadth-first walk,
// mirroring NodeQuery's builder style: every method returns a new value
// rather than mutating the receiver, so a base traversal can seed several
// branches safely.
type Traversal struct {
	db       *DB
	startID  int64
	dir      Direction
	edgeType string
	nodeType string
	minDepth int
	maxDepth int
	unique   bool
	hasUniq  bool
	filter   func(*Node) bool
}

// Traverse starts a new Traversal from startID, defaulting to an outgoing,
// depth-1, any-edge-type walk.
func (db *DB) Traverse(startID int64) Traversal {
	return Traversal{db: db, startID: startID, dir: DirOut, maxDepth: 1}
}

// Out restricts the walk to outgoing edges of edgeType (empty means any type).
func (t Traversal) Out(edgeType string) Traversal {
	out := t
	out.dir = DirOut
	out.edgeType = edgeType
	return out
}

// In restricts the walk to incoming edges of edgeType.
func (t Traversal) In(edgeType string) Traversal {
	out := t
	out.dir = DirIn
	out.edgeType = edgeType
	return out
}

// Both follows edges of edgeType in either direction, collapsing in/out
// expansion so a node is never expanded twice.
func (t Traversal) Both(edgeType string) Traversal {
	out := t
	out.dir = DirBoth
	out.edgeType = edgeType
	return out
}

// MaxDepth bounds how many hops the walk explores.
func (t Traversal) MaxDepth(n int) Traversal {
	out := t
	out.maxDepth = n
	return out
}

// MinDepth sets the minimum hop count a node must be reached at to appear
// in results.
func (t Traversal) MinDepth(n int) Traversal {
	out := t
	out.minDepth = n
	return out
}

// NodeType restricts reached (and further-expanded) nodes to the given type.
func (t Traversal) NodeType(nodeType string) Traversal {
	out := t
	out.nodeType = nodeType
	return out
}

// Unique sets whether a node reached by more than one edge is emitted more
// than once. Defaults to true.
func (t Traversal) Unique(u bool) Traversal {
	out := t
	out.unique = u
	out.hasUniq = true
	return out
}

// Filter applies a post-materialization predicate over each reached node.
func (t Traversal) Filter(fn func(*Node) bool) Traversal {
	out := t
	out.filter = fn
	return out
}

func (t Traversal) opts() TraversalOptions {
	maxDepth := t.maxDepth
	if maxDepth == 0 {
		maxDepth = 1
	}
	return TraversalOptions{
		EdgeType:       t.edgeType,
		Dir:            t.dir,
		MinDepth:       t.minDepth,
		MaxDepth:       maxDepth,
		NodeTypeFilter: t.nodeType,
		Unique:         t.unique,
		UniqueSet:      t.hasUniq,
		UserFilter:     t.filter,
	}
}

// ToArray materializes every reached node in BFS order.
func (t Traversal) ToArray(ctx context.Context) ([]*Node, error) {
	return t.db.ToArray(ctx, t.startID, t.opts())
}

// ToPaths reconstructs the shortest BFS path to every reached node.
func (t Traversal) ToPaths(ctx context.Context) ([]*Path, error) {
	return t.db.ToPaths(ctx, t.startID, t.opts())
}

// ShortestPath returns the shortest path from the traversal's start node to
// targetID, or NOT_FOUND if none exists within MaxDepth.
func (t Traversal) ShortestPath(ctx context.Context, targetID int64) (*Path, error) {
	return t.db.ShortestPath(ctx, t.startID, targetID, t.opts())
}

// Paths enumerates every simple path to targetID, capped at maxPaths (0 for
// unbounded).
func (t Traversal) Paths(ctx context.Context, targetID int64, maxPaths int) ([]*Path, error) {
	return t.db.Paths(ctx, t.startID, targetID, PathOptions{TraversalOptions: t.opts(), MaxPaths: maxPaths})
}
