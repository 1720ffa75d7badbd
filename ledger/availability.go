package ledger

import (
	"github.com/google/uuid"
)

// Availability is the computed lending capacity of one book: how many copies
// are currently lent out versus the total copy count. It has no storage of
// its own, the active count always derives from the open borrowings.
type Availability struct {
	BookID      uuid.UUID
	ActiveCount int64
	TotalCopies int64
}

// Available reports whether at least one copy can still be checked out.
func (a Availability) Available() bool {
	return a.ActiveCount < a.TotalCopies
}

// CopiesLeft returns the number of copies that can still be checked out.
func (a Availability) CopiesLeft() int64 {
	if a.ActiveCount >= a.TotalCopies {
		return 0
	}

	return a.TotalCopies - a.ActiveCount
}
