package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// execer is the subset of *sql.DB / *sql.Conn that entity-store, query,
// traversal and merge code needs. Implementing operations against this
// interface instead of concretely against *sql.DB lets every operation run
// either standalone (its own implicit transaction) or inside a
// caller-managed Tx, without duplicating logic.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the context exposed to the callback passed to DB.Transaction. It
// carries the active *sql.Conn plus a stack of named savepoints. A Tx is
// either active or finalized; any operation after finalization fails with
// TRANSACTION_FINALIZED.
//
// BEGIN IMMEDIATE is issued directly over the connection (rather than
// relying on database/sql's BeginTx) so the write lock is acquired up
// front and named savepoints can be driven by hand.
type Tx struct {
	mu         sync.Mutex
	db         *DB
	conn       *sql.Conn
	ctx        context.Context
	finalized  bool
	savepoints map[string]bool
}

func (t *Tx) checkActive(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return newErr(CodeTransactionFinal, op, "transaction is already finalized")
	}
	return nil
}

// Commit finalizes the transaction, making its writes durable.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return newErr(CodeTransactionFinal, "commit", "transaction is already finalized")
	}
	if _, err := t.conn.ExecContext(t.ctx, "COMMIT"); err != nil {
		return wrapErr(CodeStorageError, "commit", "commit transaction", err)
	}
	t.finalized = true
	_ = t.conn.Close()
	return nil
}

// Rollback finalizes the transaction, discarding its writes.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return newErr(CodeTransactionFinal, "rollback", "transaction is already finalized")
	}
	if _, err := t.conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		return wrapErr(CodeStorageError, "rollback", "rollback transaction", err)
	}
	t.finalized = true
	_ = t.conn.Close()
	return nil
}

// quoteSavepoint quotes a savepoint name verbatim so punctuation (hyphens,
// etc.) in caller-supplied names is legal in the SAVEPOINT statement.
func quoteSavepoint(name string) string {
	return `"` + name + `"`
}

// Savepoint establishes a new named rollback point inside the transaction.
func (t *Tx) Savepoint(name string) error {
	if err := t.checkActive("savepoint"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.savepoints[name] {
		return newErr(CodeSavepointExists, "savepoint", fmt.Sprintf("savepoint %q already exists", name))
	}
	if _, err := t.conn.ExecContext(t.ctx, "SAVEPOINT "+quoteSavepoint(name)); err != nil {
		return wrapErr(CodeStorageError, "savepoint", "create savepoint", err)
	}
	t.savepoints[name] = true
	return nil
}

// RollbackTo discards all work done since the named savepoint, leaving
// earlier work (including the savepoint itself) live.
func (t *Tx) RollbackTo(name string) error {
	if err := t.checkActive("rollbackTo"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.savepoints[name] {
		return newErr(CodeSavepointNotFound, "rollbackTo", fmt.Sprintf("savepoint %q not found", name))
	}
	if _, err := t.conn.ExecContext(t.ctx, "ROLLBACK TO "+quoteSavepoint(name)); err != nil {
		return wrapErr(CodeStorageError, "rollbackTo", "rollback to savepoint", err)
	}
	return nil
}

// ReleaseSavepoint removes a savepoint without discarding the work done
// since it was established.
func (t *Tx) ReleaseSavepoint(name string) error {
	if err := t.checkActive("releaseSavepoint"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.savepoints[name] {
		return newErr(CodeSavepointNotFound, "releaseSavepoint", fmt.Sprintf("savepoint %q not found", name))
	}
	if _, err := t.conn.ExecContext(t.ctx, "RELEASE "+quoteSavepoint(name)); err != nil {
		return wrapErr(CodeStorageError, "releaseSavepoint", "release savepoint", err)
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) isFinalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalized
}

// Transaction begins a transaction, invokes fn(tx), and finalizes exactly
// once: auto-commit if fn returns nil and tx was not already finalized,
// auto-rollback (then re-raise) if fn returns an error or panics and tx was
// not already finalized. If fn manually committed or rolled back, this
// wrapper performs no second finalization.
//
// Uses BEGIN IMMEDIATE so the write lock is acquired up front, avoiding the
// deadlock pattern where two transactions each hold a read lock and then
// race to upgrade to a write lock.
func (db *DB) Transaction(ctx context.Context, fn func(*Tx) error) (err error) {
	conn, connErr := db.sql.Conn(ctx)
	if connErr != nil {
		return wrapErr(CodeStorageError, "transaction", "acquire connection", connErr)
	}
	if _, execErr := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); execErr != nil {
		_ = conn.Close()
		return wrapErr(CodeStorageError, "transaction", "begin immediate transaction", execErr)
	}

	tx := &Tx{db: db, conn: conn, ctx: ctx, savepoints: make(map[string]bool)}

	defer func() {
		if r := recover(); r != nil {
			if !tx.isFinalized() {
				_ = tx.Rollback()
			}
			panic(r)
		}
	}()

	fnErr := fn(tx)

	if fnErr != nil {
		if !tx.isFinalized() {
			if rbErr := tx.Rollback(); rbErr != nil {
				return rbErr
			}
		}
		return fnErr
	}

	if !tx.isFinalized() {
		if commitErr := tx.Commit(); commitErr != nil {
			return commitErr
		}
	}
	return nil
}

// withTransaction runs fn in the Tx already active on ctx's caller if one
// was supplied, or opens a fresh transaction otherwise. The merge engine
// uses this so mergeNode/mergeEdge are atomic whether called standalone or
// nested inside a caller's own Transaction (an implicit savepoint).
func (db *DB) withTransaction(ctx context.Context, parent *Tx, fn func(*Tx) error) error {
	if parent != nil {
		const spName = "__merge_nested"
		if err := parent.Savepoint(spName); err != nil {
			return err
		}
		if err := fn(parent); err != nil {
			_ = parent.RollbackTo(spName)
			_ = parent.ReleaseSavepoint(spName)
			return err
		}
		return parent.ReleaseSavepoint(spName)
	}
	return db.Transaction(ctx, fn)
}
