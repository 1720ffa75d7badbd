// Package adapters provides database adapter implementations for the PostgreSQL ledger engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database
// libraries: pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent
// functionality through a common DBAdapter interface, allowing the ledger engine to work
// seamlessly with any supported database connection type.
//
// The adapters handle the specifics of each database library while presenting a unified
// interface for query execution, single-row reads, and result handling.
package adapters
