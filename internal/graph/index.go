package graph

import (
	"context"
	"fmt"
	"strings"
)

// CreatePropertyIndex creates a secondary index over (type, json_extract
// property), partial on the given node type and optionally UNIQUE. The
// index name is deterministic (IndexName) so merge operations can cheaply
// check whether a property they're matching on is indexed before warning
// about the cost of an unindexed MERGE.
func (db *DB) CreatePropertyIndex(ctx context.Context, idx PropertyIndex) error {
	if idx.Type == "" || idx.Prop == "" {
		return newErr(CodeInvalidType, "createPropertyIndex", "index type and property must not be empty")
	}
	// CREATE INDEX can't bind parameters, so the type name is validated
	// against the schema before it is substituted into the DDL string.
	if !db.currentSchema().AllowsNodeType(idx.Type) {
		return newErr(CodeInvalidType, "createPropertyIndex", fmt.Sprintf("node type %q is not permitted by schema", idx.Type))
	}
	name := idx.Name
	if name == "" {
		name = IndexName(idx.Type, idx.Prop)
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf(
		`CREATE %sINDEX IF NOT EXISTS %s ON nodes(type, json_extract(properties, '$.%s')) WHERE type = '%s'`,
		unique, quoteIdent(name), idx.Prop, escapeSQLLiteral(idx.Type))

	if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
		return wrapStorageErr("createPropertyIndex", err)
	}
	return nil
}

// quoteIdent double-quotes a SQLite identifier so index names derived from
// caller-supplied type/property strings can't break out of the statement.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// escapeSQLLiteral doubles embedded single quotes per SQL string literal
// escaping rules, the defense against a caller-supplied type name
// containing a quote in the non-parameterizable index DDL.
func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// DropIndex removes a named index. Dropping a nonexistent index is a no-op,
// matching sqlite's own DROP INDEX IF EXISTS semantics.
func (db *DB) DropIndex(ctx context.Context, name string) error {
	if _, err := db.sql.ExecContext(ctx, `DROP INDEX IF EXISTS `+quoteIdent(name)); err != nil {
		return wrapStorageErr("dropIndex", err)
	}
	return nil
}

// ListIndexes enumerates the property indexes created by CreatePropertyIndex,
// identified by the idx_merge_ naming convention. The standing indexes
// schema.go creates at bootstrap (idx_nodes_type and friends) are not merge
// property indexes and are excluded.
func (db *DB) ListIndexes(ctx context.Context) ([]string, error) {
	return listIndexes(ctx, db.ex())
}

func listIndexes(ctx context.Context, ex execer) ([]string, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'nodes' AND name LIKE 'idx\_merge\_%' ESCAPE '\'`)
	if err != nil {
		return nil, wrapStorageErr("listIndexes", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapStorageErr("listIndexes", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("listIndexes", err)
	}
	return out, nil
}

// hasIndexForMergeKeys reports whether every property in match has a
// standing property index for nodeType, by the deterministic naming
// convention. It errs toward false negatives: a hand-named index the
// caller created under a different name won't be recognized, so this is
// used only to decide whether to log PERFORMANCE_WARNING, never to block
// the merge itself. It runs over the caller's execer so a merge already
// holding the write connection doesn't contend with the pool.
func hasIndexForMergeKeys(ctx context.Context, ex execer, nodeType string, match Properties) (bool, error) {
	existing, err := listIndexes(ctx, ex)
	if err != nil {
		return false, err
	}
	set := make(map[string]bool, len(existing))
	for _, n := range existing {
		set[n] = true
	}
	for prop := range match {
		if !set[IndexName(nodeType, prop)] {
			return false, nil
		}
	}
	return true, nil
}
