package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database handle a store runs its queries on.
// Both *sql.DB and *sql.Tx satisfy it, so a store can be backed by the
// connection pool or bound to a single transaction via WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
