package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bibliosys-backend/internal/domain"
)

const selectReader = `SELECT id, account_id, first_name, last_name, email, membership_number, status, created_at, updated_at FROM readers`

type readerRepository struct {
	db dbtx
}

func (r *readerRepository) Create(ctx context.Context, rd *domain.Reader) error {
	query := `INSERT INTO readers (account_id, first_name, last_name, email, membership_number, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (membership_number) DO NOTHING RETURNING id`
	err := r.db.QueryRowContext(ctx, query, rd.AccountID, rd.FirstName, rd.LastName, rd.Email, rd.MembershipNumber, rd.Status, rd.CreatedAt, rd.UpdatedAt).Scan(&rd.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUniqueViolation
	}
	if isUniqueViolation(err) {
		// email or account already registered
		return domain.ErrDuplicate
	}
	return err
}

func (r *readerRepository) GetByID(ctx context.Context, id int64) (*domain.Reader, error) {
	return r.get(ctx, selectReader+` WHERE id = $1`, id)
}

func (r *readerRepository) GetByAccountID(ctx context.Context, accountID int64) (*domain.Reader, error) {
	return r.get(ctx, selectReader+` WHERE account_id = $1`, accountID)
}

func (r *readerRepository) GetByEmail(ctx context.Context, email string) (*domain.Reader, error) {
	return r.get(ctx, selectReader+` WHERE email = $1`, email)
}

func (r *readerRepository) get(ctx context.Context, query string, arg any) (*domain.Reader, error) {
	rd := &domain.Reader{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&rd.ID, &rd.AccountID, &rd.FirstName, &rd.LastName, &rd.Email, &rd.MembershipNumber, &rd.Status, &rd.CreatedAt, &rd.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *readerRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReaderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE readers SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
