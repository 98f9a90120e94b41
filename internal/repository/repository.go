package repository

import (
	"context"
	"time"

	"bibliosys-backend/internal/domain"
)

// ItemRepository owns the available-copy counter. Reserve and Release are the
// only operations allowed to move it, and each is a single atomic step.
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	// Reserve takes one copy off the shelf: domain.ErrExhausted or domain.ErrNotFound.
	Reserve(ctx context.Context, id int64) error
	// Release puts one copy back: domain.ErrOverReturn or domain.ErrNotFound.
	Release(ctx context.Context, id int64) error
}

type BorrowRequestRepository interface {
	// Create fails with domain.ErrDuplicate while the requester already has a
	// pending request for the same item.
	Create(ctx context.Context, req *domain.BorrowRequest) error
	GetByID(ctx context.Context, id int64) (*domain.BorrowRequest, error)
	// GetForUpdate loads the request and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRequest, error)
	// SaveDecision persists a decided request only if the stored copy is still
	// pending, otherwise domain.ErrAlreadyDecided.
	SaveDecision(ctx context.Context, req *domain.BorrowRequest) error
	ListPending(ctx context.Context, filter domain.RequestFilter) ([]domain.BorrowRequest, int32, error)
}

type ReturnRequestRepository interface {
	// Create fails with domain.ErrDuplicate while the loan already has a pending return request.
	Create(ctx context.Context, req *domain.ReturnRequest) error
	GetByID(ctx context.Context, id int64) (*domain.ReturnRequest, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.ReturnRequest, error)
	SaveDecision(ctx context.Context, req *domain.ReturnRequest) error
	ListPending(ctx context.Context, filter domain.RequestFilter) ([]domain.ReturnRequest, int32, error)
}

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error)
	// Close persists a closed loan only if the stored copy is still active,
	// otherwise domain.ErrAlreadyClosed.
	Close(ctx context.Context, loan *domain.Loan) error
	ListByBorrower(ctx context.Context, borrowerID int64) ([]domain.Loan, error)
	List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error)
	ListActiveDueBefore(ctx context.Context, t time.Time) ([]domain.Loan, error)
}

type ArchiveRepository interface {
	// Record inserts the entry unless one exists for the same loan, and returns
	// the id of whichever entry is stored.
	Record(ctx context.Context, entry *domain.ArchiveEntry) (int64, error)
	GetByLoanID(ctx context.Context, loanID int64) (*domain.ArchiveEntry, error)
	List(ctx context.Context, limit, offset int) ([]domain.ArchiveEntry, int32, error)
}

type AccountRepository interface {
	// Create fails with domain.ErrUniqueViolation when the username is taken.
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type ReaderRepository interface {
	// Create fails with domain.ErrUniqueViolation when the membership number is taken.
	Create(ctx context.Context, reader *domain.Reader) error
	GetByID(ctx context.Context, id int64) (*domain.Reader, error)
	GetByAccountID(ctx context.Context, accountID int64) (*domain.Reader, error)
	GetByEmail(ctx context.Context, email string) (*domain.Reader, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ReaderStatus) error
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos interface {
	Items() ItemRepository
	BorrowRequests() BorrowRequestRepository
	ReturnRequests() ReturnRequestRepository
	Loans() LoanRepository
	Archive() ArchiveRepository
	Accounts() AccountRepository
	Readers() ReaderRepository
}

// Store hands out repositories. Work passed to WithinTx commits as a unit:
// if fn returns an error nothing it wrote is kept.
type Store interface {
	Repos
	WithinTx(ctx context.Context, fn func(tx Repos) error) error
}
