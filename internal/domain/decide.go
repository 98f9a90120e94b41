package domain

import "time"

// BorrowOutcome is the next state of a borrow request plus the effects that
// must be committed with it.
type BorrowOutcome struct {
	Request BorrowRequest
	// ReserveItem is the item whose copy must be reserved, zero if none.
	ReserveItem int64
	// Loan is opened once the reservation succeeded.
	Loan *Loan
}

// DecideBorrow is a pure function: it computes what a librarian decision
// means for a borrow request without touching storage.
//
// Business Rules:
//
//	GIVEN: a borrow request and a decision by librarian deciderID
//	WHEN: the decision is REJECT
//	THEN: the request becomes REJECTED, nothing else happens
//	WHEN: the decision is APPROVE
//	THEN: the request becomes APPROVED, one copy of the item is reserved and a loan opens
//	ERROR: ErrAlreadyDecided if the request is no longer PENDING
//	ERROR: ErrInvalidDecision for anything but APPROVE or REJECT
func DecideBorrow(req BorrowRequest, decision Decision, deciderID int64, note string, now time.Time, policy LoanPolicy) (BorrowOutcome, error) {
	if req.Status != RequestStatusPending {
		return BorrowOutcome{}, ErrAlreadyDecided
	}

	next := req
	next.DecidedBy = &deciderID
	next.DecidedAt = &now
	next.DecisionNote = note

	switch decision {
	case DecisionReject:
		next.Status = RequestStatusRejected
		return BorrowOutcome{Request: next}, nil
	case DecisionApprove:
		next.Status = RequestStatusApproved
		return BorrowOutcome{
			Request:     next,
			ReserveItem: req.ItemID,
			Loan:        NewLoan(req.ItemID, req.RequesterID, now, time.Time{}, policy),
		}, nil
	default:
		return BorrowOutcome{}, ErrInvalidDecision
	}
}

// Exhausted turns an approval whose reservation failed into a rejection.
// No loan opens and no copy moves.
func (o BorrowOutcome) Exhausted() BorrowOutcome {
	o.Request.Status = RequestStatusRejected
	o.Request.DecisionNote = NoteNoCopiesAvailable
	o.ReserveItem = 0
	o.Loan = nil
	return o
}

// ReturnOutcome is the next state of a return request plus the effects that
// must be committed with it.
type ReturnOutcome struct {
	Request ReturnRequest
	// CloseLoan is the loan to close, zero if none.
	CloseLoan  int64
	ReturnedAt time.Time
}

// DecideReturn is the pure counterpart of DecideBorrow for returns.
//
// Business Rules:
//
//	GIVEN: a return request and a decision by librarian deciderID
//	WHEN: the decision is REJECT
//	THEN: the request becomes REJECTED, the loan stays active
//	WHEN: the decision is APPROVE
//	THEN: the request becomes APPROVED, the loan closes at returnedAt, its copy
//	      goes back on the shelf and the closure is archived
//	ERROR: ErrAlreadyDecided if the request is no longer PENDING
//	ERROR: ErrInvalidDecision for anything but APPROVE or REJECT
func DecideReturn(req ReturnRequest, decision Decision, deciderID int64, note string, returnedAt, now time.Time) (ReturnOutcome, error) {
	if req.Status != RequestStatusPending {
		return ReturnOutcome{}, ErrAlreadyDecided
	}

	next := req
	next.DecidedBy = &deciderID
	next.DecidedAt = &now
	next.DecisionNote = note

	switch decision {
	case DecisionReject:
		next.Status = RequestStatusRejected
		return ReturnOutcome{Request: next}, nil
	case DecisionApprove:
		if returnedAt.IsZero() {
			returnedAt = now
		}
		next.Status = RequestStatusApproved
		return ReturnOutcome{Request: next, CloseLoan: req.LoanID, ReturnedAt: returnedAt}, nil
	default:
		return ReturnOutcome{}, ErrInvalidDecision
	}
}
