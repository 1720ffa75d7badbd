package ledger_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

func Test_Availability_CopiesLeft(t *testing.T) {
	// arrange
	bookID := uuid.New()

	// act + assert
	assert.Equal(t, int64(3), ledger.Availability{BookID: bookID, ActiveCount: 0, TotalCopies: 3}.CopiesLeft())
	assert.Equal(t, int64(1), ledger.Availability{BookID: bookID, ActiveCount: 2, TotalCopies: 3}.CopiesLeft())
	assert.Equal(t, int64(0), ledger.Availability{BookID: bookID, ActiveCount: 3, TotalCopies: 3}.CopiesLeft())
}

func Test_Availability_Available_FalseWhenAllCopiesLent(t *testing.T) {
	// act + assert
	assert.True(t, ledger.Availability{ActiveCount: 2, TotalCopies: 3}.Available())
	assert.False(t, ledger.Availability{ActiveCount: 3, TotalCopies: 3}.Available())
}
