package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
)

type requestWorkflow struct {
	store     repository.Store
	inventory InventoryLedger
	loans     LoanRegister
	archive   ArchivalStore
	clock     Clock
}

func NewRequestWorkflow(
	store repository.Store,
	inventory InventoryLedger,
	loans LoanRegister,
	archive ArchivalStore,
	clock Clock,
) RequestWorkflow {
	return &requestWorkflow{
		store:     store,
		inventory: inventory,
		loans:     loans,
		archive:   archive,
		clock:     clock,
	}
}

func (s *requestWorkflow) SubmitBorrow(ctx context.Context, p domain.Principal, itemID int64, comment string) (*domain.BorrowRequest, error) {
	readerID, err := p.RequireReader()
	if err != nil {
		return nil, err
	}
	if err := requireActiveReader(ctx, s.store, readerID); err != nil {
		return nil, err
	}
	if _, err := s.store.Items().GetByID(ctx, itemID); err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}

	req := domain.NewBorrowRequest(readerID, itemID, comment, s.clock.now())
	if err := s.store.BorrowRequests().Create(ctx, req); err != nil {
		return nil, err
	}
	logger.Info("Borrow request submitted", "request_id", req.ID, "reader_id", readerID, "item_id", itemID)
	return req, nil
}

func (s *requestWorkflow) ListPendingBorrowRequests(ctx context.Context, p domain.Principal, filter domain.RequestFilter) ([]domain.BorrowRequest, int32, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, 0, err
	}
	return s.store.BorrowRequests().ListPending(ctx, filter)
}

// DecideBorrow commits the request state, the reservation and the new loan
// together. Losing the race for the last copy is an outcome, not an error:
// the request is stored as REJECTED and the call succeeds.
func (s *requestWorkflow) DecideBorrow(ctx context.Context, p domain.Principal, requestID int64, decision domain.Decision, note string) (*BorrowDecision, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, err
	}

	var result BorrowDecision
	err := s.store.WithinTx(ctx, func(tx repository.Repos) error {
		req, err := tx.BorrowRequests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		outcome, err := domain.DecideBorrow(*req, decision, p.AccountID, note, s.clock.now(), s.loans.Policy())
		if err != nil {
			return err
		}
		if outcome.ReserveItem != 0 {
			if err := requireActiveReader(ctx, tx, req.RequesterID); err != nil {
				return fmt.Errorf("requester %d: %w", req.RequesterID, err)
			}
			err := s.inventory.Reserve(ctx, tx, outcome.ReserveItem)
			switch {
			case errors.Is(err, domain.ErrExhausted):
				outcome = outcome.Exhausted()
			case err != nil:
				return fmt.Errorf("reserve item %d: %w", outcome.ReserveItem, err)
			}
		}

		if outcome.Loan != nil {
			if err := s.loans.Open(ctx, tx, outcome.Loan); err != nil {
				return err
			}
		}
		if err := tx.BorrowRequests().SaveDecision(ctx, &outcome.Request); err != nil {
			return err
		}

		result = BorrowDecision{Request: outcome.Request, Loan: outcome.Loan}
		return nil
	})
	if err != nil {
		return nil, err
	}

	args := []any{"decided_by", p.AccountID, "item_id", result.Request.ItemID}
	if result.Loan != nil {
		args = append(args, "loan_id", result.Loan.ID)
	}
	logger.Decision("borrow", requestID, string(result.Request.Status), args...)
	return &result, nil
}

func (s *requestWorkflow) SubmitReturn(ctx context.Context, p domain.Principal, loanID int64, comment string) (*domain.ReturnRequest, error) {
	readerID, err := p.RequireReader()
	if err != nil {
		return nil, err
	}

	var req *domain.ReturnRequest
	err = s.store.WithinTx(ctx, func(tx repository.Repos) error {
		if err := requireActiveReader(ctx, tx, readerID); err != nil {
			return err
		}
		// The row lock keeps a concurrent return approval from closing the
		// loan between the status check and the insert.
		loan, err := tx.Loans().GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("loan %d: %w", loanID, err)
		}
		if loan.BorrowerID != readerID {
			return domain.ErrNotOwner
		}
		if loan.Status != domain.LoanStatusActive {
			return domain.ErrLoanNotActive
		}

		req = domain.NewReturnRequest(readerID, loanID, comment, s.clock.now())
		return tx.ReturnRequests().Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Return request submitted", "request_id", req.ID, "reader_id", readerID, "loan_id", loanID)
	return req, nil
}

// requireActiveReader re-checks the profile on every request: a token issued
// before a suspension must not keep working.
func requireActiveReader(ctx context.Context, repos repository.Repos, readerID int64) error {
	reader, err := repos.Readers().GetByID(ctx, readerID)
	if err != nil {
		return fmt.Errorf("reader %d: %w", readerID, err)
	}
	if !reader.AccountShouldBeActive() {
		return domain.ErrAccountInactive
	}
	return nil
}

func (s *requestWorkflow) ListPendingReturnRequests(ctx context.Context, p domain.Principal, filter domain.RequestFilter) ([]domain.ReturnRequest, int32, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, 0, err
	}
	return s.store.ReturnRequests().ListPending(ctx, filter)
}

// DecideReturn applies an approval as close loan, release copy, archive,
// mark APPROVED. Any failure leaves every one of those untouched.
func (s *requestWorkflow) DecideReturn(ctx context.Context, p domain.Principal, requestID int64, decision domain.Decision, returnedAt time.Time, note string) (*ReturnDecision, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, err
	}

	var result ReturnDecision
	err := s.store.WithinTx(ctx, func(tx repository.Repos) error {
		req, err := tx.ReturnRequests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		outcome, err := domain.DecideReturn(*req, decision, p.AccountID, note, returnedAt, s.clock.now())
		if err != nil {
			return err
		}

		if outcome.CloseLoan != 0 {
			closed, err := s.loans.Close(ctx, tx, outcome.CloseLoan, outcome.ReturnedAt)
			if err != nil {
				return fmt.Errorf("close loan %d: %w", outcome.CloseLoan, err)
			}
			if err := s.inventory.Release(ctx, tx, closed.ItemID); err != nil {
				return err
			}
			entryID, err := s.archive.Record(ctx, tx, *closed)
			if err != nil {
				return err
			}
			result.Loan = closed
			result.ArchiveEntryID = entryID
		}

		if err := tx.ReturnRequests().SaveDecision(ctx, &outcome.Request); err != nil {
			return err
		}
		result.Request = outcome.Request
		return nil
	})
	if err != nil {
		if domain.IsInvariantViolation(err) {
			logger.Error("Return decision aborted", "request_id", requestID, "error", err)
		}
		return nil, err
	}

	args := []any{"decided_by", p.AccountID, "loan_id", result.Request.LoanID}
	if result.Loan != nil {
		args = append(args, "loan_status", result.Loan.Status, "fine", result.Loan.FineAmount.StringFixed(2))
	}
	logger.Decision("return", requestID, string(result.Request.Status), args...)
	return &result, nil
}

func (s *requestWorkflow) IsOverdue(ctx context.Context, loanID int64, now time.Time) (bool, error) {
	return s.loans.IsOverdue(ctx, loanID, now)
}
