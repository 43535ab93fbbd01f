package graph

import (
	"errors"
	"fmt"
)

// Code is one value from the engine's closed error taxonomy.
type Code string

const (
	CodeInvalidType        Code = "INVALID_TYPE"
	CodeInvalidProperties  Code = "INVALID_PROPERTIES"
	CodeInvalidID          Code = "INVALID_ID"
	CodeNotFound           Code = "NOT_FOUND"
	CodeStartNotFound      Code = "START_NOT_FOUND"
	CodeInvalidDepth       Code = "INVALID_DEPTH"
	CodeEmptyMatch         Code = "EMPTY_MATCH"
	CodeMergeConflict      Code = "MERGE_CONFLICT"
	CodeTransactionFinal   Code = "TRANSACTION_FINALIZED"
	CodeSavepointExists    Code = "SAVEPOINT_EXISTS"
	CodeSavepointNotFound  Code = "SAVEPOINT_NOT_FOUND"
	CodeStorageError       Code = "STORAGE_ERROR"
	CodeUnsupportedVersion Code = "UNSUPPORTED_VERSION"
)

// Error is the single tagged-variant error type the engine returns. Every
// operation-level failure is an *Error; callers type-switch on Code via
// errors.As, not on the message text.
type Error struct {
	Code Code
	Op   string // operation name that raised the error, e.g. "createNode"
	Msg  string
	Err  error // wrapped cause, e.g. the underlying driver error

	// MERGE_CONFLICT payload
	ConflictingNodes []int64
	MatchProps       Properties
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, graph.CodeNotFound) style checks against a bare
// Code by wrapping it as a sentinel-compatible comparison on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newErr(code Code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg}
}

func wrapErr(code Code, op, msg string, cause error) *Error {
	return &Error{Code: code, Op: op, Msg: msg, Err: cause}
}

// wrapStorageErr wraps an underlying *sql.DB / driver error, attaching only
// the operation name. Storage errors pass through otherwise untouched so
// callers can still reach the driver's own error via errors.As/Is.
func wrapStorageErr(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return wrapErr(CodeStorageError, op, "storage engine error", err)
}

// CodeOf extracts the Code from err, if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
