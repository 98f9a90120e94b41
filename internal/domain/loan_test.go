package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoan_DefaultsDueDate(t *testing.T) {
	borrowed := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	loan := NewLoan(1, 2, borrowed, time.Time{}, DefaultLoanPolicy())

	assert.Equal(t, time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC), loan.DueAt)
	assert.Equal(t, LoanStatusActive, loan.Status)
	assert.True(t, loan.FineAmount.IsZero())
}

func TestNewLoan_KeepsSuppliedDueDate(t *testing.T) {
	borrowed := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	due := borrowed.Add(7 * 24 * time.Hour)

	loan := NewLoan(1, 2, borrowed, due, DefaultLoanPolicy())

	assert.Equal(t, due, loan.DueAt)
}

func TestLoanClose(t *testing.T) {
	policy := DefaultLoanPolicy()
	borrowed := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("ThreeDaysLate", func(t *testing.T) {
		loan := *NewLoan(1, 2, borrowed, time.Time{}, policy)
		returned := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

		closed, err := loan.Close(returned, policy)

		require.NoError(t, err)
		assert.Equal(t, LoanStatusClosedLate, closed.Status)
		assert.True(t, decimal.RequireFromString("3.00").Equal(closed.FineAmount))
		require.NotNil(t, closed.ReturnedAt)
		assert.Equal(t, returned, *closed.ReturnedAt)
	})

	t.Run("LaterOnDueDayIsOnTime", func(t *testing.T) {
		loan := *NewLoan(1, 2, borrowed, time.Time{}, policy)

		closed, err := loan.Close(time.Date(2024, 1, 29, 23, 0, 0, 0, time.UTC), policy)

		require.NoError(t, err)
		assert.Equal(t, LoanStatusClosedOnTime, closed.Status)
		assert.True(t, closed.FineAmount.IsZero())
	})

	t.Run("EarlyReturn", func(t *testing.T) {
		loan := *NewLoan(1, 2, borrowed, time.Time{}, policy)

		closed, err := loan.Close(borrowed.Add(48*time.Hour), policy)

		require.NoError(t, err)
		assert.Equal(t, LoanStatusClosedOnTime, closed.Status)
		assert.True(t, closed.FineAmount.IsZero())
	})

	t.Run("CustomRate", func(t *testing.T) {
		custom := policy
		custom.DailyRate = decimal.RequireFromString("0.25")
		loan := *NewLoan(1, 2, borrowed, time.Time{}, custom)

		closed, err := loan.Close(time.Date(2024, 2, 8, 12, 0, 0, 0, time.UTC), custom)

		require.NoError(t, err)
		assert.Equal(t, "2.50", closed.FineAmount.StringFixed(2))
	})

	t.Run("AlreadyClosed", func(t *testing.T) {
		loan := *NewLoan(1, 2, borrowed, time.Time{}, policy)
		closed, err := loan.Close(borrowed, policy)
		require.NoError(t, err)

		_, err = closed.Close(borrowed, policy)

		assert.ErrorIs(t, err, ErrAlreadyClosed)
	})
}

func TestCalendarDaysBetween_UsesLocation(t *testing.T) {
	due := time.Date(2024, 1, 29, 22, 0, 0, 0, time.UTC)
	returned := time.Date(2024, 1, 30, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, CalendarDaysBetween(due, returned, time.UTC))
	// Both instants fall on 29 January five hours west of UTC.
	assert.Equal(t, 0, CalendarDaysBetween(due, returned, time.FixedZone("EST", -5*3600)))
}

func TestLoanIsOverdue(t *testing.T) {
	policy := DefaultLoanPolicy()
	borrowed := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	loan := *NewLoan(1, 2, borrowed, time.Time{}, policy)

	assert.False(t, loan.IsOverdue(loan.DueAt))
	assert.True(t, loan.IsOverdue(loan.DueAt.Add(time.Second)))

	closed, err := loan.Close(loan.DueAt.Add(72*time.Hour), policy)
	require.NoError(t, err)
	assert.False(t, closed.IsOverdue(loan.DueAt.Add(96*time.Hour)))
}

func TestParseLoanStatus(t *testing.T) {
	st, err := ParseLoanStatus(" closed_late ")
	require.NoError(t, err)
	assert.Equal(t, LoanStatusClosedLate, st)

	_, err = ParseLoanStatus("LOST")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoanFilter_Normalize(t *testing.T) {
	f := LoanFilter{Status: LoanStatusActive, Limit: 5000, Offset: -3}.Normalize()
	assert.Equal(t, MaxPageSize, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, LoanStatusActive, f.Status)

	assert.Equal(t, DefaultPageSize, LoanFilter{}.Normalize().Limit)
}
