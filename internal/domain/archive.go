package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArchiveEntry is the immutable record written once a loan closes.
type ArchiveEntry struct {
	ID         int64           `json:"id"`
	LoanID     int64           `json:"loan_id"`
	ItemID     int64           `json:"item_id"`
	BorrowerID int64           `json:"borrower_id"`
	BorrowedAt time.Time       `json:"borrowed_at"`
	DueAt      time.Time       `json:"due_at"`
	ReturnedAt time.Time       `json:"returned_at"`
	Status     LoanStatus      `json:"status"`
	FineAmount decimal.Decimal `json:"fine_amount"`
	Snapshot   []byte          `json:"-"`
	ArchivedAt time.Time       `json:"archived_at"`
}

// NewArchiveEntry copies the closed loan's fields. It refuses active loans.
func NewArchiveEntry(l Loan, now time.Time) (*ArchiveEntry, error) {
	if !l.Status.Closed() || l.ReturnedAt == nil {
		return nil, ErrInvalidInput
	}
	return &ArchiveEntry{
		LoanID:     l.ID,
		ItemID:     l.ItemID,
		BorrowerID: l.BorrowerID,
		BorrowedAt: l.BorrowedAt,
		DueAt:      l.DueAt,
		ReturnedAt: *l.ReturnedAt,
		Status:     l.Status,
		FineAmount: l.FineAmount,
		ArchivedAt: now,
	}, nil
}
