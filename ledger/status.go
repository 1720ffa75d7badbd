package ledger

import (
	"time"
)

// Status is the derived state of a Borrowing at a given instant.
type Status string

const (
	// StatusActive means the loan is open and the due date has not passed.
	StatusActive Status = "active"

	// StatusOverdue means the loan is open and the due date lies in the past.
	StatusOverdue Status = "overdue"

	// StatusReturned is terminal: ReturnedAt is set, regardless of whether
	// the return happened after the due date.
	StatusReturned Status = "returned"
)

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}

// StatusOf derives the status of a Borrowing at the given instant.
//
// Callers evaluating a batch of borrowings must sample "now" once and pass
// the same instant for every record, so a single listing never shows
// statuses computed at slightly different times.
func StatusOf(b Borrowing, now time.Time) Status {
	if b.Returned() {
		return StatusReturned
	}

	if b.DueDate.Before(now) {
		return StatusOverdue
	}

	return StatusActive
}
