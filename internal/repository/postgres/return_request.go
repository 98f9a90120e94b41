package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"bibliosys-backend/internal/domain"
)

var returnRequestColumns = []any{"id", "requester_id", "loan_id", "submitted_at", "status", "decided_by", "decided_at", "comment", "decision_note"}

const selectReturnRequest = `SELECT id, requester_id, loan_id, submitted_at, status, decided_by, decided_at, comment, decision_note FROM return_requests`

type returnRequestRepository struct {
	db dbtx
}

func scanReturnRequest(s scanner) (*domain.ReturnRequest, error) {
	req := &domain.ReturnRequest{}
	err := s.Scan(&req.ID, &req.RequesterID, &req.LoanID, &req.SubmittedAt, &req.Status, &req.DecidedBy, &req.DecidedAt, &req.Comment, &req.DecisionNote)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *returnRequestRepository) Create(ctx context.Context, req *domain.ReturnRequest) error {
	query := `INSERT INTO return_requests (requester_id, loan_id, submitted_at, status, comment)
	          VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING RETURNING id`
	err := r.db.QueryRowContext(ctx, query, req.RequesterID, req.LoanID, req.SubmittedAt, req.Status, req.Comment).Scan(&req.ID)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *returnRequestRepository) GetByID(ctx context.Context, id int64) (*domain.ReturnRequest, error) {
	return r.get(ctx, selectReturnRequest+` WHERE id = $1`, id)
}

func (r *returnRequestRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ReturnRequest, error) {
	return r.get(ctx, selectReturnRequest+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *returnRequestRepository) get(ctx context.Context, query string, id int64) (*domain.ReturnRequest, error) {
	req, err := scanReturnRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return req, err
}

func (r *returnRequestRepository) SaveDecision(ctx context.Context, req *domain.ReturnRequest) error {
	query := `UPDATE return_requests SET status = $1, decided_by = $2, decided_at = $3, decision_note = $4
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

func (r *returnRequestRepository) ListPending(ctx context.Context, filter domain.RequestFilter) ([]domain.ReturnRequest, int32, error) {
	filter = filter.Normalize()
	ds := dialect.From("return_requests").Prepared(true).
		Where(goqu.C("status").Eq(string(domain.RequestStatusPending)))
	if filter.RequesterID != 0 {
		ds = ds.Where(goqu.C("requester_id").Eq(filter.RequesterID))
	}
	if filter.LoanID != 0 {
		ds = ds.Where(goqu.C("loan_id").Eq(filter.LoanID))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.Select(returnRequestColumns...).
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

	var requests []domain.ReturnRequest
	for rows.Next() {
		req, err := scanReturnRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *req)
	}
	return requests, total, rows.Err()
}
