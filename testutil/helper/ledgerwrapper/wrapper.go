// Package ledgerwrapper abstracts over the three supported database adapter
// types so the same integration tests can run against pgx.Pool, sql.DB, and
// sqlx.DB connections, selected through the ADAPTER_TYPE environment variable.
package ledgerwrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/ledger/postgresengine"
	"github.com/bostalabs/lending-ledger-go/testutil/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetLedger() *postgresengine.Ledger
	ExecSQL(t testing.TB, query string, args ...any)
	QueryRowScan(t testing.TB, query string, dest ...any)
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	ledger *postgresengine.Ledger
}

func (w *PGXPoolWrapper) GetLedger() *postgresengine.Ledger {
	return w.ledger
}

func (w *PGXPoolWrapper) ExecSQL(t testing.TB, query string, args ...any) {
	_, err := w.pool.Exec(context.Background(), query, args...)
	assert.NoError(t, err, "error executing sql in test setup")
}

func (w *PGXPoolWrapper) QueryRowScan(t testing.TB, query string, dest ...any) {
	err := w.pool.QueryRow(context.Background(), query).Scan(dest...)
	assert.NoError(t, err, "error scanning row in test setup")
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// Pool exposes the underlying pool for components that require pgxpool
// connections, like the catalog and registry stores.
func (w *PGXPoolWrapper) Pool() *pgxpool.Pool {
	return w.pool
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db     *sql.DB
	ledger *postgresengine.Ledger
}

func (w *SQLDBWrapper) GetLedger() *postgresengine.Ledger {
	return w.ledger
}

func (w *SQLDBWrapper) ExecSQL(t testing.TB, query string, args ...any) {
	_, err := w.db.Exec(query, args...)
	assert.NoError(t, err, "error executing sql in test setup")
}

func (w *SQLDBWrapper) QueryRowScan(t testing.TB, query string, dest ...any) {
	err := w.db.QueryRow(query).Scan(dest...)
	assert.NoError(t, err, "error scanning row in test setup")
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db     *sqlx.DB
	ledger *postgresengine.Ledger
}

func (w *SQLXWrapper) GetLedger() *postgresengine.Ledger {
	return w.ledger
}

func (w *SQLXWrapper) ExecSQL(t testing.TB, query string, args ...any) {
	_, err := w.db.Exec(query, args...)
	assert.NoError(t, err, "error executing sql in test setup")
}

func (w *SQLXWrapper) QueryRowScan(t testing.TB, query string, dest ...any) {
	err := w.db.QueryRow(query).Scan(dest...)
	assert.NoError(t, err, "error scanning row in test setup")
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the environment variable.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		lendingLedger, err := postgresengine.NewLedgerFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating lending ledger")

		return &PGXPoolWrapper{pool: connPool, ledger: lendingLedger}

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig()

		lendingLedger, err := postgresengine.NewLedgerFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating lending ledger")

		return &SQLDBWrapper{db: db, ledger: lendingLedger}

	case typeSQLXDB:
		db := config.PostgresSQLXTestConfig()

		lendingLedger, err := postgresengine.NewLedgerFromSQLX(db, options...)
		assert.NoError(t, err, "error creating lending ledger")

		return &SQLXWrapper{db: db, ledger: lendingLedger}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// TryCreateLedgerWithTableNames tries to create a ledger with the given table
// names and returns the error (for testing error cases).
func TryCreateLedgerWithTableNames(t testing.TB, borrowings string, books string, borrowers string) error {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	options := []postgresengine.Option{
		postgresengine.WithTableNames(borrowings, books, borrowers),
	}

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		defer connPool.Close()

		_, err = postgresengine.NewLedgerFromPGXPool(connPool, options...)
		return err

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig()
		defer func(db *sql.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewLedgerFromSQLDB(db, options...)
		return err

	case typeSQLXDB:
		db := config.PostgresSQLXTestConfig()
		defer func(db *sqlx.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewLedgerFromSQLX(db, options...)
		return err

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// CleanUp truncates the lending tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	wrapper.ExecSQL(t, "TRUNCATE TABLE borrowings")
	wrapper.ExecSQL(t, "UPDATE books SET lent_count = 0")
}

// CleanUpAll truncates the lending tables and the catalog and registry tables.
func CleanUpAll(t testing.TB, wrapper Wrapper) {
	wrapper.ExecSQL(t, "TRUNCATE TABLE borrowings, books, borrowers")
}
