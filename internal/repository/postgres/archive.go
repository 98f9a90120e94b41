package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"bibliosys-backend/internal/domain"
)

var archiveColumns = []any{"id", "loan_id", "item_id", "borrower_id", "borrowed_at", "due_at", "returned_at", "status", "fine_amount", "snapshot", "archived_at"}

type archiveRepository struct {
	db dbtx
}

func scanArchiveEntry(s scanner) (*domain.ArchiveEntry, error) {
	e := &domain.ArchiveEntry{}
	err := s.Scan(&e.ID, &e.LoanID, &e.ItemID, &e.BorrowerID, &e.BorrowedAt, &e.DueAt, &e.ReturnedAt, &e.Status, &e.FineAmount, &e.Snapshot, &e.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Record is idempotent per loan: a second entry for the same loan is dropped
// by the unique constraint and the existing id is returned instead.
func (r *archiveRepository) Record(ctx context.Context, e *domain.ArchiveEntry) (int64, error) {
	query := `INSERT INTO loan_archive (loan_id, item_id, borrower_id, borrowed_at, due_at, returned_at, status, fine_amount, snapshot, archived_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (loan_id) DO NOTHING RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query, e.LoanID, e.ItemID, e.BorrowerID, e.BorrowedAt, e.DueAt, e.ReturnedAt, e.Status, e.FineAmount, e.Snapshot, e.ArchivedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.QueryRowContext(ctx, `SELECT id FROM loan_archive WHERE loan_id = $1`, e.LoanID).Scan(&id)
	}
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

func (r *archiveRepository) GetByLoanID(ctx context.Context, loanID int64) (*domain.ArchiveEntry, error) {
	query, args, err := dialect.From("loan_archive").Prepared(true).
		Select(archiveColumns...).
		Where(goqu.C("loan_id").Eq(loanID)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	e, err := scanArchiveEntry(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

func (r *archiveRepository) List(ctx context.Context, limit, offset int) ([]domain.ArchiveEntry, int32, error) {
	ds := dialect.From("loan_archive").Prepared(true)

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	l, o := pageBounds(limit, offset)
	query, args, err := ds.Select(archiveColumns...).
		Order(goqu.C("archived_at").Desc(), goqu.C("id").Desc()).
		Limit(l).Offset(o).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.ArchiveEntry
	for rows.Next() {
		e, err := scanArchiveEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}
