package service

import (
	"context"
	"fmt"
	"time"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository"
)

type loanRegister struct {
	store  repository.Store
	policy domain.LoanPolicy
}

func NewLoanRegister(store repository.Store, policy domain.LoanPolicy) LoanRegister {
	return &loanRegister{store: store, policy: policy}
}

func (s *loanRegister) Policy() domain.LoanPolicy {
	return s.policy
}

func (s *loanRegister) Open(ctx context.Context, repos repository.Repos, loan *domain.Loan) error {
	if err := repos.Loans().Create(ctx, loan); err != nil {
		return fmt.Errorf("open loan: %w", err)
	}
	return nil
}

// Close settles the fine and stores the closure. Closing twice fails with
// domain.ErrAlreadyClosed, both on the loaded copy and on the stored one.
func (s *loanRegister) Close(ctx context.Context, repos repository.Repos, loanID int64, returnedAt time.Time) (*domain.Loan, error) {
	loan, err := repos.Loans().GetForUpdate(ctx, loanID)
	if err != nil {
		return nil, err
	}
	closed, err := loan.Close(returnedAt, s.policy)
	if err != nil {
		return nil, err
	}
	if err := repos.Loans().Close(ctx, &closed); err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *loanRegister) IsOverdue(ctx context.Context, loanID int64, now time.Time) (bool, error) {
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		return false, err
	}
	return loan.IsOverdue(now), nil
}

func (s *loanRegister) ListOverdue(ctx context.Context, now time.Time) ([]domain.Loan, error) {
	return s.store.Loans().ListActiveDueBefore(ctx, now)
}

func (s *loanRegister) ListBorrowerLoans(ctx context.Context, p domain.Principal) ([]domain.Loan, error) {
	readerID, err := p.RequireReader()
	if err != nil {
		return nil, err
	}
	return s.store.Loans().ListByBorrower(ctx, readerID)
}

func (s *loanRegister) List(ctx context.Context, p domain.Principal, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, 0, err
	}
	return s.store.Loans().List(ctx, filter)
}

// GetLoan is open to librarians and to the borrower; anyone else gets
// domain.ErrNotOwner.
func (s *loanRegister) GetLoan(ctx context.Context, p domain.Principal, loanID int64) (*LoanDetail, error) {
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("loan %d: %w", loanID, err)
	}
	isBorrower := p.ReaderID != nil && *p.ReaderID == loan.BorrowerID
	if !isBorrower && !p.IsLibrarian() {
		return nil, domain.ErrNotOwner
	}

	detail := &LoanDetail{Loan: *loan}
	if isBorrower && loan.Status == domain.LoanStatusActive {
		_, pending, err := s.store.ReturnRequests().ListPending(ctx, domain.RequestFilter{LoanID: loan.ID, Limit: 1})
		if err != nil {
			return nil, err
		}
		detail.CanRequestReturn = pending == 0
	}
	return detail, nil
}
