package postgresengine_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/testutil/helper"
)

// Many borrowers race for a small number of copies. Exactly as many
// checkouts may succeed as copies exist, no matter how the statements
// interleave.
func Test_Checkout_Concurrent_NeverOversellsCopies(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	const totalCopies = 3
	const numBorrowers = 20

	bookID := helper.GivenBookInCatalog(t, wrapper, totalCopies)
	dueDate := fakeClock.Now().Add(14 * 24 * time.Hour)

	borrowerIDs := make([]uuid.UUID, 0, numBorrowers)
	for n := 0; n < numBorrowers; n++ {
		borrowerIDs = append(borrowerIDs, helper.GivenRegisteredBorrower(t, wrapper))
	}

	successCount := atomic.Int32{}
	unavailableCount := atomic.Int32{}

	var wg sync.WaitGroup

	// act
	for i := 0; i < numBorrowers; i++ {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			_, err := lendingLedger.Checkout(ctx, borrowerIDs[slot], bookID, dueDate)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ledger.ErrNoCopiesAvailable):
				unavailableCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	// assert
	assert.Equal(t, int32(totalCopies), successCount.Load())
	assert.Equal(t, int32(numBorrowers-totalCopies), unavailableCount.Load())
	assert.Equal(t, int64(totalCopies), helper.LentCountFromDB(t, wrapper, bookID))
	assert.Equal(t, int64(totalCopies), helper.OpenBorrowingCountFromDB(t, wrapper, bookID))
}

// One borrower fires parallel checkouts for the same book. Exactly one may
// win; the partial unique index arbitrates whatever the precheck misses.
func Test_Checkout_Concurrent_SamePair_OnlyOneWins(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	const numAttempts = 10

	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)
	bookID := helper.GivenBookInCatalog(t, wrapper, numAttempts) // plenty of copies, the pair rule must block
	dueDate := fakeClock.Now().Add(14 * 24 * time.Hour)

	successCount := atomic.Int32{}
	duplicateCount := atomic.Int32{}

	var wg sync.WaitGroup

	// act
	for n := 0; n < numAttempts; n++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := lendingLedger.Checkout(ctx, borrowerID, bookID, dueDate)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ledger.ErrDuplicateActiveLoan):
				duplicateCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(numAttempts-1), duplicateCount.Load())
	assert.Equal(t, int64(1), helper.LentCountFromDB(t, wrapper, bookID))
}

// Parallel returns of the same borrowing. Exactly one may succeed, and the
// copy is released exactly once.
func Test_ReturnBook_Concurrent_AtMostOnce(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	const numAttempts = 10

	borrowerID := helper.GivenRegisteredBorrower(t, wrapper)
	bookID := helper.GivenBookInCatalog(t, wrapper, 1)

	borrowing, err := lendingLedger.Checkout(ctx, borrowerID, bookID, fakeClock.Now().Add(14*24*time.Hour))
	assert.NoError(t, err, "error in arranging test data")

	fakeClock.Advance(24 * time.Hour)

	successCount := atomic.Int32{}
	alreadyReturnedCount := atomic.Int32{}

	var wg sync.WaitGroup

	// act
	for n := 0; n < numAttempts; n++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, returnErr := lendingLedger.ReturnBook(ctx, borrowing.ID)
			switch {
			case returnErr == nil:
				successCount.Add(1)
			case errors.Is(returnErr, ledger.ErrAlreadyReturned):
				alreadyReturnedCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", returnErr)
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(numAttempts-1), alreadyReturnedCount.Load())
	assert.Equal(t, int64(0), helper.LentCountFromDB(t, wrapper, bookID))
	assert.Equal(t, int64(0), helper.OpenBorrowingCountFromDB(t, wrapper, bookID))
}

// Checkout/return churn over a single copy. Whatever the interleaving, the
// stored counter and the open borrowings stay consistent when the dust
// settles.
func Test_CheckoutReturn_Concurrent_CounterStaysConsistent(t *testing.T) {
	// setup
	ctx, wrapper, fakeClock := setupLedgerTest(t)
	lendingLedger := wrapper.GetLedger()

	// arrange
	const numWorkers = 8
	const operationsPerWorker = 20

	bookID := helper.GivenBookInCatalog(t, wrapper, 1)
	dueDate := fakeClock.Now().Add(14 * 24 * time.Hour)

	borrowerIDs := make([]uuid.UUID, 0, numWorkers)
	for n := 0; n < numWorkers; n++ {
		borrowerIDs = append(borrowerIDs, helper.GivenRegisteredBorrower(t, wrapper))
	}

	var wg sync.WaitGroup

	// act
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			for n := 0; n < operationsPerWorker; n++ {
				borrowing, err := lendingLedger.Checkout(ctx, borrowerIDs[slot], bookID, dueDate)
				if err != nil {
					if !errors.Is(err, ledger.ErrNoCopiesAvailable) && !errors.Is(err, ledger.ErrDuplicateActiveLoan) {
						t.Errorf("unexpected checkout error: %v", err)
					}

					continue
				}

				if _, err = lendingLedger.ReturnBook(ctx, borrowing.ID); err != nil {
					t.Errorf("unexpected return error: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	// assert
	assert.Equal(t, int64(0), helper.LentCountFromDB(t, wrapper, bookID))
	assert.Equal(t, int64(0), helper.OpenBorrowingCountFromDB(t, wrapper, bookID))
}
