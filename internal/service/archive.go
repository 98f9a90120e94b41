package service

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type archivalStore struct {
	store repository.Store
	clock Clock
}

func NewArchivalStore(store repository.Store, clock Clock) ArchivalStore {
	return &archivalStore{store: store, clock: clock}
}

// Record writes at most one entry per loan. The full loan is kept as a JSON
// snapshot next to the flattened columns.
func (s *archivalStore) Record(ctx context.Context, repos repository.Repos, closed domain.Loan) (int64, error) {
	entry, err := domain.NewArchiveEntry(closed, s.clock.now())
	if err != nil {
		return 0, fmt.Errorf("archive loan %d: %w", closed.ID, err)
	}
	snapshot, err := json.Marshal(closed)
	if err != nil {
		return 0, fmt.Errorf("encode loan snapshot: %w", err)
	}
	entry.Snapshot = snapshot
	return repos.Archive().Record(ctx, entry)
}

func (s *archivalStore) List(ctx context.Context, p domain.Principal, limit, offset int) ([]domain.ArchiveEntry, int32, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, 0, err
	}
	f := domain.RequestFilter{Limit: limit, Offset: offset}.Normalize()
	return s.store.Archive().List(ctx, f.Limit, f.Offset)
}
