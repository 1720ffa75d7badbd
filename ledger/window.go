package ledger

import (
	"time"
)

// Window is a closed date interval [start, end]. Both boundaries are
// inclusive: a borrowing stamped exactly at start or exactly at end falls
// inside the window.
type Window struct {
	start time.Time
	end   time.Time
}

// BuildWindow creates a Window after validating the boundaries.
// Returns an InvalidInput domain error if either boundary is the zero
// instant or if end lies before start.
func BuildWindow(start time.Time, end time.Time) (Window, error) {
	if start.IsZero() {
		return Window{}, InvalidInput("start", "must not be the zero time")
	}

	if end.IsZero() {
		return Window{}, InvalidInput("end", "must not be the zero time")
	}

	if end.Before(start) {
		return Window{}, InvalidInput("end", "must not be before start")
	}

	return Window{start: start, end: end}, nil
}

// Start returns the inclusive lower boundary.
func (w Window) Start() time.Time {
	return w.start
}

// End returns the inclusive upper boundary.
func (w Window) End() time.Time {
	return w.end
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.start) && !t.After(w.end)
}
