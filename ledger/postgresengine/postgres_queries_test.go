package postgresengine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/testutil/helper"
)

func Test_Availability_CountsLentCopies(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	bookID := helper.GivenBookInCatalog(t, wrapper, 3)
	dueDate := fakeClock.Now().Add(14 * 24 * time.Hour)

	for n := 0; n < 2; n++ {
		borrowerID := helper.GivenRegisteredBorrower(t, wrapper)
		_, err := lendingLedger.Checkout(ctx, borrowerID, bookID, dueDate)
		assert.NoError(t, err, "error in arranging test data")
	}

	// act
	availability, err := lendingLedger.Availability(ctx, bookID)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, bookID, availability.BookID)
	assert.Equal(t, int64(2), availability.ActiveCount)
	assert.Equal(t, int64(3), availability.TotalCopies)
	assert.True(t, availability.Available())
	assert.Equal(t, int64(1), availability.CopiesLeft())
}

func Test_Availability_UnknownBook_Fails(t *testing.T) {
	// setup
	ctx, wrapper, _ := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// act
	_, err := lendingLedger.Availability(ctx, helper.GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, ledger.ErrBookNotFound)
}

func Test_ActiveLoanCount_CountsOnlyOpenLoans(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)
	firstBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	secondBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	dueDate := fakeClock.Now().Add(14 * 24 * time.Hour)

	borrowing, err := lendingLedger.Checkout(ctx, borrowerID, firstBookID, dueDate)
	assert.NoError(t, err, "error in arranging test data")

	_, err = lendingLedger.Checkout(ctx, borrowerID, secondBookID, dueDate)
	assert.NoError(t, err, "error in arranging test data")

	fakeClock.Advance(24 * time.Hour)
	_, err = lendingLedger.ReturnBook(ctx, borrowing.ID)
	assert.NoError(t, err, "error in arranging test data")

	// act
	count, err := lendingLedger.ActiveLoanCount(ctx, borrowerID)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func Test_ActiveLoansByBorrower_OrderedByDueDateAscending(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)
	laterBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	soonerBookID := helper.GivenBookInCatalog(t, wrapper, 1)

	_, err := lendingLedger.Checkout(ctx, borrowerID, laterBookID, fakeClock.Now().Add(21*24*time.Hour))
	assert.NoError(t, err, "error in arranging test data")

	_, err = lendingLedger.Checkout(ctx, borrowerID, soonerBookID, fakeClock.Now().Add(7*24*time.Hour))
	assert.NoError(t, err, "error in arranging test data")

	// act
	loans, err := lendingLedger.ActiveLoansByBorrower(ctx, borrowerID)

	// assert
	assert.NoError(t, err)
	assert.Len(t, loans, 2)
	assert.Equal(t, soonerBookID, loans[0].BookID)
	assert.Equal(t, laterBookID, loans[1].BookID)
	assert.NotEmpty(t, loans[0].BookTitle)
	assert.NotEmpty(t, loans[0].BorrowerEmail)
}

func Test_ListByBorrower_NewestFirst_WithPagination(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	borrowedBookIDs := make([]string, 0, 5)
	for n := 0; n < 5; n++ {
		bookID := helper.GivenBookInCatalog(t, wrapper, 1)
		_, err := lendingLedger.Checkout(ctx, borrowerID, bookID, fakeClock.Now().Add(14*24*time.Hour))
		assert.NoError(t, err, "error in arranging test data")

		borrowedBookIDs = append(borrowedBookIDs, bookID.String())
		fakeClock.Advance(time.Hour)
	}

	// act
	firstPage, err := lendingLedger.ListByBorrower(ctx, borrowerID, ledger.BuildPageRequest(1, 2))
	assert.NoError(t, err)
	lastPage, err := lendingLedger.ListAll(ctx, ledger.BuildPageRequest(3, 2))

	// assert
	assert.NoError(t, err)

	assert.Len(t, firstPage.Items, 2)
	assert.Equal(t, int64(5), firstPage.Total)
	assert.Equal(t, 3, firstPage.TotalPages)
	assert.Equal(t, borrowedBookIDs[4], firstPage.Items[0].BookID.String())
	assert.Equal(t, borrowedBookIDs[3], firstPage.Items[1].BookID.String())

	assert.Len(t, lastPage.Items, 1)
	assert.Equal(t, borrowedBookIDs[0], lastPage.Items[0].BookID.String())
}

func Test_ListOverdue_OnlyOpenPastDueLoans_MostOverdueFirst(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	now := fakeClock.Now()
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	veryOverdueBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, veryOverdueBookID,
		now.Add(-30*24*time.Hour), now.Add(-16*24*time.Hour))

	slightlyOverdueBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, slightlyOverdueBookID,
		now.Add(-10*24*time.Hour), now.Add(-24*time.Hour))

	notDueBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, notDueBookID,
		now.Add(-24*time.Hour), now.Add(13*24*time.Hour))

	returnedBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenReturnedBorrowing(t, wrapper, borrowerID, returnedBookID,
		now.Add(-30*24*time.Hour), now.Add(-16*24*time.Hour), now.Add(-15*24*time.Hour))

	// act
	page, err := lendingLedger.ListOverdue(ctx, ledger.BuildPageRequest(1, 10))

	// assert
	assert.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, veryOverdueBookID, page.Items[0].BookID)
	assert.Equal(t, slightlyOverdueBookID, page.Items[1].BookID)
}

func Test_BorrowingsInWindow_BoundariesAreInclusive(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	now := fakeClock.Now()
	windowStart := now.Add(-10 * 24 * time.Hour)
	windowEnd := now.Add(-5 * 24 * time.Hour)

	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	beforeBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, beforeBookID,
		windowStart.Add(-time.Second), now.Add(14*24*time.Hour))

	atStartBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, atStartBookID,
		windowStart, now.Add(14*24*time.Hour))

	atEndBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, atEndBookID,
		windowEnd, now.Add(14*24*time.Hour))

	afterBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, afterBookID,
		windowEnd.Add(time.Second), now.Add(14*24*time.Hour))

	window, err := ledger.BuildWindow(windowStart, windowEnd)
	assert.NoError(t, err, "error in arranging test data")

	// act
	details, err := lendingLedger.BorrowingsInWindow(ctx, window)

	// assert
	assert.NoError(t, err)
	assert.Len(t, details, 2)
	// newest first
	assert.Equal(t, atEndBookID, details[0].BookID)
	assert.Equal(t, atStartBookID, details[1].BookID)
}

func Test_OverdueInWindow_FiltersByDueDate(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	now := fakeClock.Now()
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	dueInWindowBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, dueInWindowBookID,
		now.Add(-20*24*time.Hour), now.Add(-6*24*time.Hour))

	dueOutsideWindowBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, dueOutsideWindowBookID,
		now.Add(-40*24*time.Hour), now.Add(-26*24*time.Hour))

	dueInFutureBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, dueInFutureBookID,
		now.Add(-24*time.Hour), now.Add(6*24*time.Hour))

	window, err := ledger.BuildWindow(now.Add(-10*24*time.Hour), now.Add(10*24*time.Hour))
	assert.NoError(t, err, "error in arranging test data")

	// act
	details, err := lendingLedger.OverdueInWindow(ctx, window, now)

	// assert
	assert.NoError(t, err)
	assert.Len(t, details, 1)
	assert.Equal(t, dueInWindowBookID, details[0].BookID)
}

func Test_CountsInWindow_SplitsByStatus(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	now := fakeClock.Now()
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	activeBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, activeBookID,
		now.Add(-2*24*time.Hour), now.Add(12*24*time.Hour))

	overdueBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, overdueBookID,
		now.Add(-8*24*time.Hour), now.Add(-24*time.Hour))

	returnedBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenReturnedBorrowing(t, wrapper, borrowerID, returnedBookID,
		now.Add(-6*24*time.Hour), now.Add(8*24*time.Hour), now.Add(-24*time.Hour))

	outsideWindowBookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, outsideWindowBookID,
		now.Add(-60*24*time.Hour), now.Add(-46*24*time.Hour))

	window, err := ledger.BuildWindow(now.Add(-10*24*time.Hour), now)
	assert.NoError(t, err, "error in arranging test data")

	// act
	counts, err := lendingLedger.CountsInWindow(ctx, window, now)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(1), counts.Active)
	assert.Equal(t, int64(1), counts.Overdue)
	assert.Equal(t, int64(1), counts.Returned)
	assert.Equal(t, counts.Total, counts.Active+counts.Overdue+counts.Returned)
}

func Test_CountsInWindow_LoanDueExactlyNow_CountsAsActive(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	now := fakeClock.Now()
	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)

	bookID := helper.GivenBookInCatalog(t, wrapper, 1)
	helper.GivenOpenBorrowing(t, wrapper, borrowerID, bookID, now.Add(-24*time.Hour), now)

	window, err := ledger.BuildWindow(now.Add(-2*24*time.Hour), now)
	assert.NoError(t, err, "error in arranging test data")

	// act
	counts, err := lendingLedger.CountsInWindow(ctx, window, now)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts.Active)
	assert.Equal(t, int64(0), counts.Overdue)
}
