package helper

import (
	"testing"

	"github.com/bostalabs/lending-ledger-go/testutil/helper/ledgerwrapper"
)

// lendingSchemaDDL creates the three lending tables, one statement per entry
// so the DDL runs over every adapter's query protocol. The CHECK constraints
// on lent_count and the partial unique index on open borrowings are
// load-bearing: the engine's conditional statements rely on them to
// arbitrate races.
var lendingSchemaDDL = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

	`CREATE TABLE IF NOT EXISTS borrowers (
		id    uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		name  text NOT NULL,
		email text NOT NULL UNIQUE,
		phone text NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS books (
		id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		title          text NOT NULL,
		author         text NOT NULL,
		isbn           text NOT NULL UNIQUE,
		total_copies   bigint NOT NULL CHECK (total_copies >= 1),
		lent_count     bigint NOT NULL DEFAULT 0
		               CHECK (lent_count >= 0) CHECK (lent_count <= total_copies),
		shelf_location text NOT NULL DEFAULT '',
		shelf_metadata jsonb NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS borrowings (
		id          uuid PRIMARY KEY,
		borrower_id uuid NOT NULL REFERENCES borrowers (id),
		book_id     uuid NOT NULL REFERENCES books (id),
		borrowed_at timestamptz NOT NULL,
		due_date    timestamptz NOT NULL,
		returned_at timestamptz NULL CHECK (returned_at IS NULL OR returned_at >= borrowed_at)
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS uq_borrowings_open_loan
		ON borrowings (borrower_id, book_id)
		WHERE returned_at IS NULL`,

	`CREATE INDEX IF NOT EXISTS idx_borrowings_borrowed_at ON borrowings (borrowed_at)`,

	`CREATE INDEX IF NOT EXISTS idx_borrowings_due_date ON borrowings (due_date) WHERE returned_at IS NULL`,
}

// EnsureLendingSchema creates the lending tables if they do not exist yet.
func EnsureLendingSchema(t testing.TB, wrapper ledgerwrapper.Wrapper) {
	for _, statement := range lendingSchemaDDL {
		wrapper.ExecSQL(t, statement)
	}
}
