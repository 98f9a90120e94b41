package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"bibliosys-backend/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

var borrowRequestColumns = []any{"id", "requester_id", "item_id", "submitted_at", "status", "decided_by", "decided_at", "comment", "decision_note"}

const selectBorrowRequest = `SELECT id, requester_id, item_id, submitted_at, status, decided_by, decided_at, comment, decision_note FROM borrow_requests`

type borrowRequestRepository struct {
	db dbtx
}

func scanBorrowRequest(s scanner) (*domain.BorrowRequest, error) {
	req := &domain.BorrowRequest{}
	err := s.Scan(&req.ID, &req.RequesterID, &req.ItemID, &req.SubmittedAt, &req.Status, &req.DecidedBy, &req.DecidedAt, &req.Comment, &req.DecisionNote)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Create relies on the partial unique index over pending rows, so two racing
// submissions cannot both be stored.
func (r *borrowRequestRepository) Create(ctx context.Context, req *domain.BorrowRequest) error {
	query := `INSERT INTO borrow_requests (requester_id, item_id, submitted_at, status, comment)
	          VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING RETURNING id`
	err := r.db.QueryRowContext(ctx, query, req.RequesterID, req.ItemID, req.SubmittedAt, req.Status, req.Comment).Scan(&req.ID)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *borrowRequestRepository) GetByID(ctx context.Context, id int64) (*domain.BorrowRequest, error) {
	return r.get(ctx, selectBorrowRequest+` WHERE id = $1`, id)
}

func (r *borrowRequestRepository) GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRequest, error) {
	return r.get(ctx, selectBorrowRequest+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *borrowRequestRepository) get(ctx context.Context, query string, id int64) (*domain.BorrowRequest, error) {
	req, err := scanBorrowRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return req, err
}

func (r *borrowRequestRepository) SaveDecision(ctx context.Context, req *domain.BorrowRequest) error {
	query := `UPDATE borrow_requests SET status = $1, decided_by = $2, decided_at = $3, decision_note = $4
	          WHERE id = $5 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, req.Status, req.DecidedBy, req.DecidedAt, req.DecisionNote, req.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyDecided
	}
	return nil
}

func (r *borrowRequestRepository) ListPending(ctx context.Context, filter domain.RequestFilter) ([]domain.BorrowRequest, int32, error) {
	filter = filter.Normalize()
	ds := dialect.From("borrow_requests").Prepared(true).
		Where(goqu.C("status").Eq(string(domain.RequestStatusPending)))
	if filter.RequesterID != 0 {
		ds = ds.Where(goqu.C("requester_id").Eq(filter.RequesterID))
	}
	if filter.ItemID != 0 {
		ds = ds.Where(goqu.C("item_id").Eq(filter.ItemID))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.Select(borrowRequestColumns...).
		Order(goqu.C("submitted_at").Asc(), goqu.C("id").Asc()).
		Limit(limit).Offset(offset).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []domain.BorrowRequest
	for rows.Next() {
		req, err := scanBorrowRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *req)
	}
	return requests, total, rows.Err()
}

func count(ctx context.Context, db dbtx, ds *goqu.SelectDataset) (int32, error) {
	query, args, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, err
	}
	var total int32
	if err := db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
