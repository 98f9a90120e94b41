package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"bibliosys-backend/internal/domain"
)

var loanColumns = []any{"id", "item_id", "borrower_id", "borrowed_at", "due_at", "returned_at", "status", "fine_amount"}

const selectLoan = `SELECT id, item_id, borrower_id, borrowed_at, due_at, returned_at, status, fine_amount FROM loans`

type loanRepository struct {
	db dbtx
}

func scanLoan(s scanner) (*domain.Loan, error) {
	l := &domain.Loan{}
	if err := s.Scan(&l.ID, &l.ItemID, &l.BorrowerID, &l.BorrowedAt, &l.DueAt, &l.ReturnedAt, &l.Status, &l.FineAmount); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	query := `INSERT INTO loans (item_id, borrower_id, borrowed_at, due_at, status, fine_amount)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.db.QueryRowContext(ctx, query, l.ItemID, l.BorrowerID, l.BorrowedAt, l.DueAt, l.Status, l.FineAmount).Scan(&l.ID)
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.get(ctx, selectLoan+` WHERE id = $1`, id)
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.get(ctx, selectLoan+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) get(ctx context.Context, query string, id int64) (*domain.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return l, err
}

func (r *loanRepository) Close(ctx context.Context, l *domain.Loan) error {
	query := `UPDATE loans SET returned_at = $1, status = $2, fine_amount = $3
	          WHERE id = $4 AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, query, l.ReturnedAt, l.Status, l.FineAmount, l.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyClosed
	}
	return nil
}

func (r *loanRepository) ListByBorrower(ctx context.Context, borrowerID int64) ([]domain.Loan, error) {
	return r.list(ctx, selectLoan+` WHERE borrower_id = $1 ORDER BY borrowed_at DESC`, borrowerID)
}

func (r *loanRepository) ListActiveDueBefore(ctx context.Context, t time.Time) ([]domain.Loan, error) {
	return r.list(ctx, selectLoan+` WHERE status = 'ACTIVE' AND due_at < $1 ORDER BY due_at`, t)
}

// List pages through loans newest first.
func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	filter = filter.Normalize()
	ds := dialect.From("loans").Prepared(true)
	if filter.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.BorrowerID != 0 {
		ds = ds.Where(goqu.C("borrower_id").Eq(filter.BorrowerID))
	}
	if filter.ItemID != 0 {
		ds = ds.Where(goqu.C("item_id").Eq(filter.ItemID))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.Select(loanColumns...).
		Order(goqu.C("borrowed_at").Desc(), goqu.C("id").Desc()).
		Limit(limit).Offset(offset).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}

	loans, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (r *loanRepository) list(ctx context.Context, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}
