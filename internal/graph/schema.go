package graph

import (
	"fmt"
	"time"
)

// ddlSchema creates the two normalized entity tables plus the standing
// indexes every query and traversal path relies on. CREATE ... IF NOT
// EXISTS makes bootstrap idempotent across repeated Open calls against the
// same file.
const ddlSchema = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at);
CREATE INDEX IF NOT EXISTS idx_nodes_updated_at ON nodes(updated_at);

CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    from_id INTEGER NOT NULL,
    to_id INTEGER NOT NULL,
    properties TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (from_id) REFERENCES nodes(id) ON DELETE CASCADE,
    FOREIGN KEY (to_id) REFERENCES nodes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
CREATE INDEX IF NOT EXISTS idx_edges_from_type ON edges(from_id, type);
CREATE INDEX IF NOT EXISTS idx_edges_to_type ON edges(to_id, type);
CREATE INDEX IF NOT EXISTS idx_edges_created_at ON edges(created_at);

CREATE TABLE IF NOT EXISTS _metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT OR IGNORE INTO _metadata (key, value) VALUES ('schema_version', '1');
`

// schemaVersion is the current _metadata.schema_version value. Bumped only
// when the DDL above changes shape.
const schemaVersion = "1"

// bootstrap creates the schema tables/indexes and applies the pragmas the
// rest of the engine assumes are in effect (foreign keys, WAL). It is safe
// to call on every Open.
func (db *DB) bootstrap() error {
	if _, err := db.sql.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return wrapErr(CodeStorageError, "bootstrap", "enable foreign keys", err)
	}
	if db.opts.WAL {
		if _, err := db.sql.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return wrapErr(CodeStorageError, "bootstrap", "enable WAL mode", err)
		}
	}
	if _, err := db.sql.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", db.opts.BusyTimeoutMS)); err != nil {
		return wrapErr(CodeStorageError, "bootstrap", "set busy_timeout", err)
	}
	if _, err := db.sql.Exec(ddlSchema); err != nil {
		return wrapErr(CodeStorageError, "bootstrap", "create schema", err)
	}
	// Diagnostic breadcrumbs, refreshed on every open. Not part of any
	// invariant; schema_version above is the only load-bearing key.
	if _, err := db.sql.Exec(
		`INSERT OR REPLACE INTO _metadata (key, value) VALUES ('driver', 'sqlite3'), ('opened_at', ?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return wrapErr(CodeStorageError, "bootstrap", "record open metadata", err)
	}
	return nil
}
