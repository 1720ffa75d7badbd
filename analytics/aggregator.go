// Package analytics builds windowed reports over the lending ledger. It is
// strictly read-only: it samples "now" once per request, derives every status
// from that single instant, and never mutates ledger state.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

// Source is the ledger query surface the aggregator reads from.
// *postgresengine.Ledger satisfies it.
type Source interface {
	BorrowingsInWindow(ctx context.Context, w ledger.Window) ([]ledger.BorrowingDetails, error)
	OverdueInWindow(ctx context.Context, w ledger.Window, now time.Time) ([]ledger.BorrowingDetails, error)
	CountsInWindow(ctx context.Context, w ledger.Window, now time.Time) (ledger.WindowCounts, error)
}

// ErrNilSource is returned when NewAggregator is given a nil source.
var ErrNilSource = errors.New("source must not be nil")

// Summary is the windowed status tally, stamped with the instant the
// statuses were judged against.
type Summary struct {
	Window      ledger.Window
	GeneratedAt time.Time
	Counts      ledger.WindowCounts
}

// Row is one borrowing in a report, flattened for export.
type Row struct {
	ID            uuid.UUID
	BorrowerName  string
	BorrowerEmail string
	BookTitle     string
	BookISBN      string
	BorrowedAt    time.Time
	DueDate       time.Time
	ReturnedAt    *time.Time
	Status        ledger.Status
}

// Aggregator computes windowed reports from a Source.
type Aggregator struct {
	source Source
	clock  ledger.Clock
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator) error

// WithClock overrides the clock statuses are judged against.
func WithClock(clock ledger.Clock) AggregatorOption {
	return func(a *Aggregator) error {
		if clock == nil {
			return ledger.ErrNilClock
		}

		a.clock = clock

		return nil
	}
}

// NewAggregator creates an Aggregator reading from the given source.
func NewAggregator(source Source, options ...AggregatorOption) (*Aggregator, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	a := &Aggregator{
		source: source,
		clock:  ledger.SystemClock{},
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Summarize tallies the borrowings checked out inside the window by status.
// All four counts are judged against the same sampled instant, so a row is
// counted exactly once.
func (a *Aggregator) Summarize(ctx context.Context, w ledger.Window) (Summary, error) {
	now := a.clock.Now().UTC()

	counts, err := a.source.CountsInWindow(ctx, w, now)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Window:      w,
		GeneratedAt: now,
		Counts:      counts,
	}, nil
}

// BorrowingsReport lists the borrowings checked out inside the window,
// newest first, with each status derived from one sampled instant.
func (a *Aggregator) BorrowingsReport(ctx context.Context, w ledger.Window) ([]Row, error) {
	now := a.clock.Now().UTC()

	details, err := a.source.BorrowingsInWindow(ctx, w)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(details))
	for _, detail := range details {
		rows = append(rows, buildRow(detail, ledger.StatusOf(detail.Borrowing, now)))
	}

	return rows, nil
}

// OverdueReport lists the open, past-due borrowings whose due date falls
// inside the window, most overdue first. Every row reports overdue status
// since the query already selected for it.
func (a *Aggregator) OverdueReport(ctx context.Context, w ledger.Window) ([]Row, error) {
	now := a.clock.Now().UTC()

	details, err := a.source.OverdueInWindow(ctx, w, now)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(details))
	for _, detail := range details {
		rows = append(rows, buildRow(detail, ledger.StatusOverdue))
	}

	return rows, nil
}

func buildRow(detail ledger.BorrowingDetails, status ledger.Status) Row {
	return Row{
		ID:            detail.ID,
		BorrowerName:  detail.BorrowerName,
		BorrowerEmail: detail.BorrowerEmail,
		BookTitle:     detail.BookTitle,
		BookISBN:      detail.BookISBN,
		BorrowedAt:    detail.BorrowedAt,
		DueDate:       detail.DueDate,
		ReturnedAt:    detail.ReturnedAt,
		Status:        status,
	}
}
