package ledger

import (
	"errors"
	"time"
)

// ErrNilClock is returned when a nil Clock is supplied to a component option.
var ErrNilClock = errors.New("clock must not be nil")

// Clock returns the current instant. It is injected into every component
// that stamps or classifies borrowings, so tests can fix "now" and batch
// operations can sample it exactly once.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, reading the wall clock in UTC.
type SystemClock struct{}

// Now returns the current wall clock time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
