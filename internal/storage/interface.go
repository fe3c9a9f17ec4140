// Package storage defines the query surface shared by the local store and the
// packages that write through it inside a transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a row does not exist (or is soft-deleted).
var ErrNotFound = errors.New("not found")

// Execer runs a mutation with bound parameters.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is the execute / query-all / query-one surface of the local store.
// *sql.DB, *sql.Tx and *sqlite.Store all satisfy it.
type Querier interface {
	Execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
