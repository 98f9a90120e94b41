// Package memory is a transactional in-process store used for local runs and
// tests. A transaction works on a cloned state under the store mutex and
// replaces the live state only when its function succeeds.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository"
)

type state struct {
	nextID         int64
	items          map[int64]domain.Item
	borrowRequests map[int64]domain.BorrowRequest
	returnRequests map[int64]domain.ReturnRequest
	loans          map[int64]domain.Loan
	archive        map[int64]domain.ArchiveEntry
	accounts       map[int64]domain.Account
	readers        map[int64]domain.Reader
}

func newState() *state {
	return &state{
		items:          map[int64]domain.Item{},
		borrowRequests: map[int64]domain.BorrowRequest{},
		returnRequests: map[int64]domain.ReturnRequest{},
		loans:          map[int64]domain.Loan{},
		archive:        map[int64]domain.ArchiveEntry{},
		accounts:       map[int64]domain.Account{},
		readers:        map[int64]domain.Reader{},
	}
}

// clone is shallow per entity; stored values are never mutated in place.
func (s *state) clone() *state {
	return &state{
		nextID:         s.nextID,
		items:          maps.Clone(s.items),
		borrowRequests: maps.Clone(s.borrowRequests),
		returnRequests: maps.Clone(s.returnRequests),
		loans:          maps.Clone(s.loans),
		archive:        maps.Clone(s.archive),
		accounts:       maps.Clone(s.accounts),
		readers:        maps.Clone(s.readers),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu    sync.Mutex
	state *state
	*repos
}

func NewStore() *Store {
	s := &Store{state: newState()}
	s.repos = &repos{store: s}
	return s
}

// WithinTx serialises transactions; that is what makes concurrent decisions
// on the last copy safe in this store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&repos{store: s, tx: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

type repos struct {
	store *Store
	tx    *state
}

// run executes fn against the transaction state, or against the live state
// under the store lock when called outside WithinTx.
func (r *repos) run(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *repos) Items() repository.ItemRepository                   { return itemRepository{r} }
func (r *repos) BorrowRequests() repository.BorrowRequestRepository { return borrowRequestRepository{r} }
func (r *repos) ReturnRequests() repository.ReturnRequestRepository { return returnRequestRepository{r} }
func (r *repos) Loans() repository.LoanRepository                   { return loanRepository{r} }
func (r *repos) Archive() repository.ArchiveRepository              { return archiveRepository{r} }
func (r *repos) Accounts() repository.AccountRepository             { return accountRepository{r} }
func (r *repos) Readers() repository.ReaderRepository               { return readerRepository{r} }

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func sortedValues[T any](m map[int64]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
