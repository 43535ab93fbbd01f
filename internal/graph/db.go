package graph

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/gofrs/flock"
)

func init() {
	// The driver runs SQLite itself as compiled WASM under wazero. The
	// compiling runtime trades slower process startup for native-speed
	// execution afterward, which suits a long-lived embedded database
	// handle far better than the interpreter config the driver defaults to.
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfigCompiler()
}

// Options configures Open. The zero value is usable: an empty Path opens an
// in-memory database, the same as ":memory:".
type Options struct {
	Path string

	// WAL enables SQLite's write-ahead log, letting readers proceed
	// concurrently with a writer.
	WAL bool

	// BusyTimeoutMS is how long SQLite waits on a locked database before
	// surfacing SQLITE_BUSY, in milliseconds.
	BusyTimeoutMS int

	// Schema optionally constrains permitted node/edge types and properties.
	Schema *Schema

	// ProcessLock, when true, takes an advisory file lock next to Path so a
	// second OS process opening the same file fails fast with a clear error
	// instead of contending invisibly at the SQLite layer. Skipped for
	// in-memory databases.
	ProcessLock bool

	Logger *slog.Logger
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.BusyTimeoutMS == 0 {
		out.BusyTimeoutMS = 5000
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// preparedStmts is a process-local statement cache keyed by a short name,
// filled lazily by get. It is owned exclusively by one DB handle and
// discarded at Close; there is no cross-handle sharing. The entity-store,
// query, traversal and merge operations do not go through it: they run
// their SQL directly on the pool or the Tx connection, so the cache holds
// nothing unless get is called.
type preparedStmts struct {
	mu    sync.Mutex
	byKey map[string]*sql.Stmt
}

func newPreparedStmts() *preparedStmts {
	return &preparedStmts{byKey: make(map[string]*sql.Stmt)}
}

func (p *preparedStmts) get(db *sql.DB, key, query string) (*sql.Stmt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stmt, ok := p.byKey[key]; ok {
		return stmt, nil
	}
	stmt, err := db.Prepare(query)
	if err != nil {
		return nil, err
	}
	p.byKey[key] = stmt
	return stmt, nil
}

func (p *preparedStmts) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, stmt := range p.byKey {
		_ = stmt.Close()
	}
	p.byKey = nil
}

// DB is a handle to one property-graph database. All exported entity-store,
// query-builder, traversal, merge, transaction and index operations hang
// off this type.
type DB struct {
	sql      *sql.DB
	opts     *Options
	stmts    *preparedStmts
	lock     *flock.Flock
	log      *slog.Logger
	schemaMu sync.RWMutex
	schema   *Schema
}

// Open bootstraps (or reopens) a property-graph database at opts.Path.
// Creation of the schema is idempotent: opening an existing database is
// just as safe as creating a fresh one.
func Open(opts Options) (*DB, error) {
	o := opts.withDefaults()

	dsn := o.Path
	if dsn == "" {
		dsn = ":memory:"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrapErr(CodeStorageError, "open", "open sqlite connection", err)
	}
	// The engine assumes a single writer at a time; a pool of one
	// connection avoids SQLITE_BUSY from the driver's own pool contending
	// with itself.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{
		sql:    sqlDB,
		opts:   o,
		stmts:  newPreparedStmts(),
		log:    o.Logger,
		schema: o.Schema,
	}

	if o.ProcessLock && dsn != ":memory:" {
		l := flock.New(dsn + ".lock")
		locked, err := l.TryLock()
		if err != nil {
			_ = sqlDB.Close()
			return nil, wrapErr(CodeStorageError, "open", "acquire process lock", err)
		}
		if !locked {
			_ = sqlDB.Close()
			return nil, newErr(CodeStorageError, "open", fmt.Sprintf("database %q is locked by another process", dsn))
		}
		db.lock = l
	}

	if err := db.bootstrap(); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.log.Debug("graph database opened", "path", dsn, "wal", o.WAL)
	return db, nil
}

// SetSchema installs (or replaces) the schema CRUD validates new nodes and
// edges against. A nil schema disables validation.
func (db *DB) SetSchema(s *Schema) {
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()
	db.schema = s
}

func (db *DB) currentSchema() *Schema {
	db.schemaMu.RLock()
	defer db.schemaMu.RUnlock()
	return db.schema
}

// Close releases the prepared statement cache, the process lock (if held)
// and the underlying *sql.DB.
func (db *DB) Close() error {
	db.stmts.closeAll()
	if db.lock != nil {
		_ = db.lock.Unlock()
	}
	if err := db.sql.Close(); err != nil {
		return wrapErr(CodeStorageError, "close", "close sqlite connection", err)
	}
	return nil
}
