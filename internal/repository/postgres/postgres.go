package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/lib/pq"

	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

var dialect = goqu.Dialect("postgres")

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repos struct {
	items          repository.ItemRepository
	borrowRequests repository.BorrowRequestRepository
	returnRequests repository.ReturnRequestRepository
	loans          repository.LoanRepository
	archive        repository.ArchiveRepository
	accounts       repository.AccountRepository
	readers        repository.ReaderRepository
}

func newRepos(db dbtx) *repos {
	return &repos{
		items:          &itemRepository{db: db},
		borrowRequests: &borrowRequestRepository{db: db},
		returnRequests: &returnRequestRepository{db: db},
		loans:          &loanRepository{db: db},
		archive:        &archiveRepository{db: db},
		accounts:       &accountRepository{db: db},
		readers:        &readerRepository{db: db},
	}
}

func (r *repos) Items() repository.ItemRepository                   { return r.items }
func (r *repos) BorrowRequests() repository.BorrowRequestRepository { return r.borrowRequests }
func (r *repos) ReturnRequests() repository.ReturnRequestRepository { return r.returnRequests }
func (r *repos) Loans() repository.LoanRepository                   { return r.loans }
func (r *repos) Archive() repository.ArchiveRepository              { return r.archive }
func (r *repos) Accounts() repository.AccountRepository             { return r.accounts }
func (r *repos) Readers() repository.ReaderRepository               { return r.readers }

type Store struct {
	db *sql.DB
	*repos
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: newRepos(db)}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken by the
// repositories serialise competing decisions on the same rows.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func pageBounds(limit, offset int) (uint, uint) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return uint(limit), uint(offset)
}
