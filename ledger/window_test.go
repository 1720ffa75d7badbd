package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

func Test_BuildWindow_Success(t *testing.T) {
	// arrange
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	// act
	window, err := ledger.BuildWindow(start, end)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, start, window.Start())
	assert.Equal(t, end, window.End())
}

func Test_BuildWindow_SingleInstantWindow_IsAllowed(t *testing.T) {
	// arrange
	instant := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// act
	window, err := ledger.BuildWindow(instant, instant)

	// assert
	assert.NoError(t, err)
	assert.True(t, window.Contains(instant))
}

func Test_BuildWindow_ZeroStart_Fails(t *testing.T) {
	// act
	_, err := ledger.BuildWindow(time.Time{}, time.Now())

	// assert
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func Test_BuildWindow_ZeroEnd_Fails(t *testing.T) {
	// act
	_, err := ledger.BuildWindow(time.Now(), time.Time{})

	// assert
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func Test_BuildWindow_EndBeforeStart_Fails(t *testing.T) {
	// arrange
	start := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// act
	_, err := ledger.BuildWindow(start, end)

	// assert
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func Test_Window_Contains_BoundariesAreInclusive(t *testing.T) {
	// arrange
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	window, err := ledger.BuildWindow(start, end)
	assert.NoError(t, err)

	// act + assert
	assert.True(t, window.Contains(start))
	assert.True(t, window.Contains(end))
	assert.True(t, window.Contains(start.Add(24*time.Hour)))
	assert.False(t, window.Contains(start.Add(-time.Nanosecond)))
	assert.False(t, window.Contains(end.Add(time.Nanosecond)))
}
