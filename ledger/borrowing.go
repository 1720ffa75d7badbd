package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Borrowing is a single lending transaction in the ledger.
//
// It is created by a successful checkout and mutated exactly once, by a
// successful return which sets ReturnedAt. It is never deleted; the full
// history stays queryable for analytics.
//
// Status is never stored on the record, it is always derived with StatusOf
// against a consistently sampled "now".
type Borrowing struct {
	ID         uuid.UUID
	BorrowerID uuid.UUID
	BookID     uuid.UUID
	BorrowedAt time.Time
	DueDate    time.Time
	ReturnedAt *time.Time // nil while the loan is open
}

// Returned reports whether the borrowing has reached its terminal state.
func (b Borrowing) Returned() bool {
	return b.ReturnedAt != nil
}

// BorrowingDetails is a Borrowing joined with the borrower and book fields
// needed by listings and exports. The ledger never mutates the joined data.
type BorrowingDetails struct {
	Borrowing
	BorrowerName  string
	BorrowerEmail string
	BookTitle     string
	BookISBN      string
}
