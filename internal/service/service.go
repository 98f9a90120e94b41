package service

import (
	"context"
	"time"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository"
)

// Clock lets tests pin "now".
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// InventoryLedger keeps each item's available-copy count. Reserve and Release
// run against the repositories of the caller's transaction.
type InventoryLedger interface {
	Reserve(ctx context.Context, repos repository.Repos, itemID int64) error
	Release(ctx context.Context, repos repository.Repos, itemID int64) error
	AddStock(ctx context.Context, p domain.Principal, title string, totalCopies int32) (*domain.Item, error)
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)
}

type LoanRegister interface {
	Open(ctx context.Context, repos repository.Repos, loan *domain.Loan) error
	Close(ctx context.Context, repos repository.Repos, loanID int64, returnedAt time.Time) (*domain.Loan, error)
	IsOverdue(ctx context.Context, loanID int64, now time.Time) (bool, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Loan, error)
	ListBorrowerLoans(ctx context.Context, p domain.Principal) ([]domain.Loan, error)
	List(ctx context.Context, p domain.Principal, filter domain.LoanFilter) ([]domain.Loan, int32, error)
	GetLoan(ctx context.Context, p domain.Principal, loanID int64) (*LoanDetail, error)
	Policy() domain.LoanPolicy
}

// LoanDetail is a loan as seen by one caller. CanRequestReturn is only ever
// true for the borrower.
type LoanDetail struct {
	domain.Loan
	CanRequestReturn bool `json:"can_request_return"`
}

type ArchivalStore interface {
	Record(ctx context.Context, repos repository.Repos, closed domain.Loan) (int64, error)
	List(ctx context.Context, p domain.Principal, limit, offset int) ([]domain.ArchiveEntry, int32, error)
}

// BorrowDecision is what DecideBorrow committed. Loan is nil unless the
// request ended APPROVED.
type BorrowDecision struct {
	Request domain.BorrowRequest `json:"request"`
	Loan    *domain.Loan         `json:"loan,omitempty"`
}

type ReturnDecision struct {
	Request        domain.ReturnRequest `json:"request"`
	Loan           *domain.Loan         `json:"loan,omitempty"`
	ArchiveEntryID int64                `json:"archive_entry_id,omitempty"`
}

type RequestWorkflow interface {
	SubmitBorrow(ctx context.Context, p domain.Principal, itemID int64, comment string) (*domain.BorrowRequest, error)
	ListPendingBorrowRequests(ctx context.Context, p domain.Principal, filter domain.RequestFilter) ([]domain.BorrowRequest, int32, error)
	DecideBorrow(ctx context.Context, p domain.Principal, requestID int64, decision domain.Decision, note string) (*BorrowDecision, error)

	SubmitReturn(ctx context.Context, p domain.Principal, loanID int64, comment string) (*domain.ReturnRequest, error)
	ListPendingReturnRequests(ctx context.Context, p domain.Principal, filter domain.RequestFilter) ([]domain.ReturnRequest, int32, error)
	// DecideReturn closes the loan at returnedAt; a zero returnedAt means now.
	DecideReturn(ctx context.Context, p domain.Principal, requestID int64, decision domain.Decision, returnedAt time.Time, note string) (*ReturnDecision, error)

	IsOverdue(ctx context.Context, loanID int64, now time.Time) (bool, error)
}

type RegisterReaderInput struct {
	FirstName string
	LastName  string
	Email     string
	// Username is optional; the email's local part is used otherwise.
	Username string
	Password string
	Status   domain.ReaderStatus
}

type ReaderService interface {
	Register(ctx context.Context, p domain.Principal, in RegisterReaderInput) (*domain.Reader, *domain.Account, error)
	ChangeStatus(ctx context.Context, p domain.Principal, readerID int64, status domain.ReaderStatus) (*domain.Reader, error)
	Get(ctx context.Context, p domain.Principal, readerID int64) (*domain.Reader, error)
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *domain.Principal, error)
	EnsureLibrarian(ctx context.Context, username, password string) error
}
