package adapters

import (
	"context"
	"database/sql"
)

// ErrNoRows is the normalized "no rows" sentinel. Every adapter converts its
// library-specific no-rows error to this value, so the engine only has to
// check one sentinel.
var ErrNoRows = sql.ErrNoRows

// DBAdapter defines the interface for database operations needed by the ledger engine.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	QueryRow(ctx context.Context, query string) DBRow
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBRow defines the interface for a single-row read. Scan returns ErrNoRows
// when the query matched nothing.
type DBRow interface {
	Scan(dest ...any) error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
