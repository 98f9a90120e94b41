package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision accepts the decision in any letter case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	default:
		return "", ErrInvalidDecision
	}
}

// NoteNoCopiesAvailable is recorded on approvals turned into rejections
// because the last copy went to someone else.
const NoteNoCopiesAvailable = "no copies available"

type BorrowRequest struct {
	ID           int64         `json:"id"`
	RequesterID  int64         `json:"requester_id"`
	ItemID       int64         `json:"item_id"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	Status       RequestStatus `json:"status"`
	DecidedBy    *int64        `json:"decided_by,omitempty"`
	DecidedAt    *time.Time    `json:"decided_at,omitempty"`
	Comment      string        `json:"comment"`
	DecisionNote string        `json:"decision_note"`
}

type ReturnRequest struct {
	ID           int64         `json:"id"`
	RequesterID  int64         `json:"requester_id"`
	LoanID       int64         `json:"loan_id"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	Status       RequestStatus `json:"status"`
	DecidedBy    *int64        `json:"decided_by,omitempty"`
	DecidedAt    *time.Time    `json:"decided_at,omitempty"`
	Comment      string        `json:"comment"`
	DecisionNote string        `json:"decision_note"`
}

func NewBorrowRequest(requesterID, itemID int64, comment string, now time.Time) *BorrowRequest {
	return &BorrowRequest{
		RequesterID: requesterID,
		ItemID:      itemID,
		SubmittedAt: now,
		Status:      RequestStatusPending,
		Comment:     comment,
	}
}

func NewReturnRequest(requesterID, loanID int64, comment string, now time.Time) *ReturnRequest {
	return &ReturnRequest{
		RequesterID: requesterID,
		LoanID:      loanID,
		SubmittedAt: now,
		Status:      RequestStatusPending,
		Comment:     comment,
	}
}

// RequestFilter narrows pending-request listings. Zero values mean "any".
type RequestFilter struct {
	RequesterID int64
	ItemID      int64
	LoanID      int64
	Limit       int
	Offset      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Normalize clamps paging to sane bounds.
func (f RequestFilter) Normalize() RequestFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
