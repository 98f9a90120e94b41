package service

import (
	"context"
	"errors"
	"fmt"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
)

type inventoryLedger struct {
	store repository.Store
	clock Clock
}

func NewInventoryLedger(store repository.Store, clock Clock) InventoryLedger {
	return &inventoryLedger{store: store, clock: clock}
}

func (s *inventoryLedger) Reserve(ctx context.Context, repos repository.Repos, itemID int64) error {
	return repos.Items().Reserve(ctx, itemID)
}

// Release surfaces an over-return as an invariant violation: it means the
// books and the counter disagree, never that the caller did something wrong.
func (s *inventoryLedger) Release(ctx context.Context, repos repository.Repos, itemID int64) error {
	err := repos.Items().Release(ctx, itemID)
	if errors.Is(err, domain.ErrOverReturn) {
		logger.Invariant("available_copies_within_total", err, "item_id", itemID)
		return fmt.Errorf("release item %d: %w", itemID, err)
	}
	return err
}

func (s *inventoryLedger) AddStock(ctx context.Context, p domain.Principal, title string, totalCopies int32) (*domain.Item, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, err
	}
	item, err := domain.NewItem(title, totalCopies, s.clock.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Items().Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	logger.Info("Stock added", "item_id", item.ID, "total_copies", totalCopies, "by", p.AccountID)
	return item, nil
}

func (s *inventoryLedger) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	return s.store.Items().GetByID(ctx, itemID)
}
