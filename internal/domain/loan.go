package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive       LoanStatus = "ACTIVE"
	LoanStatusClosedOnTime LoanStatus = "CLOSED_ONTIME"
	LoanStatusClosedLate   LoanStatus = "CLOSED_LATE"
)

func (s LoanStatus) Closed() bool {
	return s == LoanStatusClosedOnTime || s == LoanStatusClosedLate
}

func ParseLoanStatus(s string) (LoanStatus, error) {
	switch st := LoanStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case LoanStatusActive, LoanStatusClosedOnTime, LoanStatusClosedLate:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown loan status %q", ErrInvalidInput, s)
	}
}

// LoanFilter narrows the librarian's loan listing. Zero values mean "any".
type LoanFilter struct {
	Status     LoanStatus
	BorrowerID int64
	ItemID     int64
	Limit      int
	Offset     int
}

func (f LoanFilter) Normalize() LoanFilter {
	page := RequestFilter{Limit: f.Limit, Offset: f.Offset}.Normalize()
	f.Limit, f.Offset = page.Limit, page.Offset
	return f
}

const DefaultLoanPeriod = 28 * 24 * time.Hour

var DefaultDailyRate = decimal.RequireFromString("1.00")

// LoanPolicy holds the lending rules applied when loans open and close.
type LoanPolicy struct {
	LoanPeriod time.Duration
	DailyRate  decimal.Decimal
	// Location decides which calendar day a timestamp falls on when
	// counting days late.
	Location *time.Location
}

func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		LoanPeriod: DefaultLoanPeriod,
		DailyRate:  DefaultDailyRate,
		Location:   time.UTC,
	}
}

func (p LoanPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

type Loan struct {
	ID         int64           `json:"id"`
	ItemID     int64           `json:"item_id"`
	BorrowerID int64           `json:"borrower_id"`
	BorrowedAt time.Time       `json:"borrowed_at"`
	DueAt      time.Time       `json:"due_at"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
	Status     LoanStatus      `json:"status"`
	FineAmount decimal.Decimal `json:"fine_amount"`
}

// NewLoan opens an active loan. A zero dueAt means "borrowedAt plus the policy's loan period".
func NewLoan(itemID, borrowerID int64, borrowedAt, dueAt time.Time, policy LoanPolicy) *Loan {
	if dueAt.IsZero() {
		period := policy.LoanPeriod
		if period <= 0 {
			period = DefaultLoanPeriod
		}
		dueAt = borrowedAt.Add(period)
	}
	return &Loan{
		ItemID:     itemID,
		BorrowerID: borrowerID,
		BorrowedAt: borrowedAt,
		DueAt:      dueAt,
		Status:     LoanStatusActive,
		FineAmount: decimal.Zero,
	}
}

// CalendarDaysBetween counts whole calendar days from from's date to to's
// date, both read in loc. Time of day is ignored.
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DaysLate is never negative.
func (l Loan) DaysLate(at time.Time, policy LoanPolicy) int {
	days := CalendarDaysBetween(l.DueAt, at, policy.location())
	if days < 0 {
		return 0
	}
	return days
}

// FineFor is the fine the loan would carry if returned at the given time.
func (l Loan) FineFor(at time.Time, policy LoanPolicy) decimal.Decimal {
	return policy.DailyRate.Mul(decimal.NewFromInt(int64(l.DaysLate(at, policy)))).Round(2)
}

// Close returns the closed copy of an active loan with its fine settled.
func (l Loan) Close(returnedAt time.Time, policy LoanPolicy) (Loan, error) {
	if l.Status != LoanStatusActive {
		return l, ErrAlreadyClosed
	}
	closed := l
	closed.ReturnedAt = &returnedAt
	closed.FineAmount = l.FineFor(returnedAt, policy)
	if l.DaysLate(returnedAt, policy) > 0 {
		closed.Status = LoanStatusClosedLate
	} else {
		closed.Status = LoanStatusClosedOnTime
	}
	return closed, nil
}

// IsOverdue is a pure read; it never changes the stored status.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && now.After(l.DueAt)
}
