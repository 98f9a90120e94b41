package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
)

type itemRepository struct {
	db dbtx
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `INSERT INTO items (title, total_copies, available_copies, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.db.QueryRowContext(ctx, query, item.Title, item.TotalCopies, item.AvailableCopies, item.CreatedAt, item.UpdatedAt).Scan(&item.ID)
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	item := &domain.Item{}
	query := `SELECT id, title, total_copies, available_copies, created_at, updated_at FROM items WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Title, &item.TotalCopies, &item.AvailableCopies, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Reserve decrements in one conditional statement; the row lock it takes makes
// concurrent reservations of the same item queue up behind each other.
func (r *itemRepository) Reserve(ctx context.Context, id int64) error {
	query := `UPDATE items SET available_copies = available_copies - 1, updated_at = NOW()
	          WHERE id = $1 AND available_copies > 0 RETURNING available_copies`
	return r.adjust(ctx, "reserve_copy", query, id, domain.ErrExhausted)
}

// Release never clamps: a release that would exceed the total is refused.
func (r *itemRepository) Release(ctx context.Context, id int64) error {
	query := `UPDATE items SET available_copies = available_copies + 1, updated_at = NOW()
	          WHERE id = $1 AND available_copies < total_copies RETURNING available_copies`
	return r.adjust(ctx, "release_copy", query, id, domain.ErrOverReturn)
}

func (r *itemRepository) adjust(ctx context.Context, operation, query string, id int64, refused error) error {
	logger.DatabaseCall(operation, query, "item_id", id)

	var available int32
	err := r.db.QueryRowContext(ctx, query, id).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := r.exists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return domain.ErrNotFound
		}
		logger.DatabaseResult(operation, 0, nil, "item_id", id, "refused", refused.Error())
		return refused
	}
	if err != nil {
		logger.DatabaseResult(operation, 0, err, "item_id", id)
		return err
	}

	logger.DatabaseResult(operation, 1, nil, "item_id", id, "available_copies", available)
	return nil
}

func (r *itemRepository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
