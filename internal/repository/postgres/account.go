package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
)

type accountRepository struct {
	db dbtx
}

// Create uses ON CONFLICT so a taken username does not abort the surrounding
// transaction; the caller retries with another candidate.
func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (username, password_hash, role, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5) ON CONFLICT (username) DO NOTHING RETURNING id`
	logger.DatabaseCall("create_account", query, "username", a.Username)
	err := r.db.QueryRowContext(ctx, query, a.Username, a.PasswordHash, a.Role, a.IsActive, a.CreatedAt).Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUniqueViolation
	}
	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.get(ctx, `SELECT id, username, password_hash, role, is_active, created_at FROM accounts WHERE id = $1`, id)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.get(ctx, `SELECT id, username, password_hash, role, is_active, created_at FROM accounts WHERE username = $1`, username)
}

func (r *accountRepository) get(ctx context.Context, query string, arg any) (*domain.Account, error) {
	a := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET is_active = $1 WHERE id = $2`, active, id)
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
