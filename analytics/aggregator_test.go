package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/analytics"
	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/testutil/helper"
)

// sourceStub feeds canned ledger data into the aggregator and records the
// "now" it was queried with.
type sourceStub struct {
	borrowings []ledger.BorrowingDetails
	overdue    []ledger.BorrowingDetails
	counts     ledger.WindowCounts
	queriedAt  []time.Time
	failWith   error
}

func (s *sourceStub) BorrowingsInWindow(_ context.Context, _ ledger.Window) ([]ledger.BorrowingDetails, error) {
	return s.borrowings, s.failWith
}

func (s *sourceStub) OverdueInWindow(_ context.Context, _ ledger.Window, now time.Time) ([]ledger.BorrowingDetails, error) {
	s.queriedAt = append(s.queriedAt, now)
	return s.overdue, s.failWith
}

func (s *sourceStub) CountsInWindow(_ context.Context, _ ledger.Window, now time.Time) (ledger.WindowCounts, error) {
	s.queriedAt = append(s.queriedAt, now)
	return s.counts, s.failWith
}

func givenWindow(t *testing.T) ledger.Window {
	w, err := ledger.BuildWindow(
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC),
	)
	assert.NoError(t, err)

	return w
}

func givenDetails(borrowedAt time.Time, dueDate time.Time, returnedAt *time.Time) ledger.BorrowingDetails {
	return ledger.BorrowingDetails{
		Borrowing: ledger.Borrowing{
			ID:         uuid.New(),
			BorrowerID: uuid.New(),
			BookID:     uuid.New(),
			BorrowedAt: borrowedAt,
			DueDate:    dueDate,
			ReturnedAt: returnedAt,
		},
		BorrowerName:  "Reader McBookface",
		BorrowerEmail: "reader@example.com",
		BookTitle:     "Learning Domain-Driven Design",
		BookISBN:      "978-1-098-10013-1",
	}
}

func Test_Summarize_ReturnsCountsStampedWithTheSampledInstant(t *testing.T) {
	// arrange
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	source := &sourceStub{counts: ledger.WindowCounts{Total: 10, Active: 4, Overdue: 2, Returned: 4}}

	aggregator, err := analytics.NewAggregator(source, analytics.WithClock(helper.NewFixedClock(now)))
	assert.NoError(t, err)

	// act
	summary, err := aggregator.Summarize(context.Background(), givenWindow(t))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(10), summary.Counts.Total)
	assert.Equal(t, int64(4), summary.Counts.Active)
	assert.Equal(t, int64(2), summary.Counts.Overdue)
	assert.Equal(t, int64(4), summary.Counts.Returned)
	assert.Equal(t, now, summary.GeneratedAt)
	assert.Equal(t, []time.Time{now}, source.queriedAt)
}

func Test_BorrowingsReport_DerivesEachStatusFromOneSampledInstant(t *testing.T) {
	// arrange
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	returnedAt := now.Add(-24 * time.Hour)

	source := &sourceStub{borrowings: []ledger.BorrowingDetails{
		givenDetails(now.Add(-72*time.Hour), now.Add(48*time.Hour), nil),         // open, due later
		givenDetails(now.Add(-96*time.Hour), now.Add(-24*time.Hour), nil),        // open, past due
		givenDetails(now.Add(-96*time.Hour), now.Add(-48*time.Hour), &returnedAt), // closed
	}}

	aggregator, err := analytics.NewAggregator(source, analytics.WithClock(helper.NewFixedClock(now)))
	assert.NoError(t, err)

	// act
	rows, err := aggregator.BorrowingsReport(context.Background(), givenWindow(t))

	// assert
	assert.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, ledger.StatusActive, rows[0].Status)
	assert.Equal(t, ledger.StatusOverdue, rows[1].Status)
	assert.Equal(t, ledger.StatusReturned, rows[2].Status)
}

func Test_OverdueReport_AllRowsAreOverdue(t *testing.T) {
	// arrange
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	source := &sourceStub{overdue: []ledger.BorrowingDetails{
		givenDetails(now.Add(-96*time.Hour), now.Add(-48*time.Hour), nil),
		givenDetails(now.Add(-72*time.Hour), now.Add(-24*time.Hour), nil),
	}}

	aggregator, err := analytics.NewAggregator(source, analytics.WithClock(helper.NewFixedClock(now)))
	assert.NoError(t, err)

	// act
	rows, err := aggregator.OverdueReport(context.Background(), givenWindow(t))

	// assert
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, ledger.StatusOverdue, row.Status)
	}
	assert.Equal(t, []time.Time{now}, source.queriedAt)
}

func Test_Aggregator_PropagatesSourceErrors(t *testing.T) {
	// arrange
	sourceErr := errors.New("connection refused")
	source := &sourceStub{failWith: sourceErr}

	aggregator, err := analytics.NewAggregator(source)
	assert.NoError(t, err)

	// act + assert
	_, err = aggregator.Summarize(context.Background(), givenWindow(t))
	assert.ErrorIs(t, err, sourceErr)

	_, err = aggregator.BorrowingsReport(context.Background(), givenWindow(t))
	assert.ErrorIs(t, err, sourceErr)

	_, err = aggregator.OverdueReport(context.Background(), givenWindow(t))
	assert.ErrorIs(t, err, sourceErr)
}

func Test_NewAggregator_NilSource_IsRejected(t *testing.T) {
	// act
	_, err := analytics.NewAggregator(nil)

	// assert
	assert.ErrorIs(t, err, analytics.ErrNilSource)
}
