// Package helper provides test fixtures and arrangement helpers for the
// lending ledger integration tests.
package helper

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/testutil/helper/ledgerwrapper"
)

// GivenUniqueID generates a unique UUID for testing.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenBookInCatalog inserts a book with the given number of copies and
// returns its ID. The ISBN is derived from the ID so repeated calls never
// collide with the catalog's uniqueness constraint.
func GivenBookInCatalog(t testing.TB, wrapper ledgerwrapper.Wrapper, totalCopies int64) uuid.UUID {
	bookID := GivenUniqueID(t)

	wrapper.ExecSQL(t,
		`INSERT INTO books (id, title, author, isbn, total_copies, lent_count) VALUES ($1, $2, $3, $4, $5, 0)`,
		bookID.String(),
		"Learning Domain-Driven Design",
		"Vlad Khononov",
		fmt.Sprintf("isbn-%s", bookID),
		totalCopies,
	)

	return bookID
}

// GivenRegisteredBorrower inserts a borrower and returns their ID. The email
// is derived from the ID so repeated calls never collide with the registry's
// uniqueness constraint.
func GivenRegisteredBorrower(t testing.TB, wrapper ledgerwrapper.Wrapper) uuid.UUID {
	borrowerID := GivenUniqueID(t)

	wrapper.ExecSQL(t,
		`INSERT INTO borrowers (id, name, email) VALUES ($1, $2, $3)`,
		borrowerID.String(),
		"Reader McBookface",
		fmt.Sprintf("reader-%s@example.com", borrowerID),
	)

	return borrowerID
}

// GivenOpenBorrowing inserts an open borrowing directly, bypassing the
// engine, and bumps the book's lent counter to keep the tables consistent.
func GivenOpenBorrowing(
	t testing.TB,
	wrapper ledgerwrapper.Wrapper,
	borrowerID uuid.UUID,
	bookID uuid.UUID,
	borrowedAt time.Time,
	dueDate time.Time,
) uuid.UUID {

	borrowingID := GivenUniqueID(t)

	wrapper.ExecSQL(t,
		`INSERT INTO borrowings (id, borrower_id, book_id, borrowed_at, due_date) VALUES ($1, $2, $3, $4, $5)`,
		borrowingID.String(), borrowerID.String(), bookID.String(), borrowedAt, dueDate,
	)
	wrapper.ExecSQL(t,
		`UPDATE books SET lent_count = lent_count + 1 WHERE id = $1`,
		bookID.String(),
	)

	return borrowingID
}

// GivenReturnedBorrowing inserts a closed borrowing directly, bypassing the
// engine. The book's lent counter is untouched since the copy came back.
func GivenReturnedBorrowing(
	t testing.TB,
	wrapper ledgerwrapper.Wrapper,
	borrowerID uuid.UUID,
	bookID uuid.UUID,
	borrowedAt time.Time,
	dueDate time.Time,
	returnedAt time.Time,
) uuid.UUID {

	borrowingID := GivenUniqueID(t)

	wrapper.ExecSQL(t,
		`INSERT INTO borrowings (id, borrower_id, book_id, borrowed_at, due_date, returned_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		borrowingID.String(), borrowerID.String(), bookID.String(), borrowedAt, dueDate, returnedAt,
	)

	return borrowingID
}

// LentCountFromDB reads the stored lent counter for a book.
func LentCountFromDB(t testing.TB, wrapper ledgerwrapper.Wrapper, bookID uuid.UUID) int64 {
	var lentCount int64

	wrapper.QueryRowScan(t,
		fmt.Sprintf(`SELECT lent_count FROM books WHERE id = '%s'`, bookID),
		&lentCount,
	)

	return lentCount
}

// OpenBorrowingCountFromDB counts the open borrowings for a book.
func OpenBorrowingCountFromDB(t testing.TB, wrapper ledgerwrapper.Wrapper, bookID uuid.UUID) int64 {
	var count int64

	wrapper.QueryRowScan(t,
		fmt.Sprintf(`SELECT count(*) FROM borrowings WHERE book_id = '%s' AND returned_at IS NULL`, bookID),
		&count,
	)

	return count
}
