package memory

import (
	"context"
	"time"

	"bibliosys-backend/internal/domain"
)

type itemRepository struct{ *repos }

func (r itemRepository) Create(_ context.Context, item *domain.Item) error {
	return r.run(func(st *state) error {
		item.ID = st.id()
		st.items[item.ID] = *item
		return nil
	})
}

func (r itemRepository) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	var out domain.Item
	err := r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r itemRepository) Reserve(_ context.Context, id int64) error {
	return r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return domain.ErrNotFound
		}
		if !item.CanReserve() {
			return domain.ErrExhausted
		}
		item.AvailableCopies--
		item.UpdatedAt = time.Now()
		st.items[id] = item
		return nil
	})
}

func (r itemRepository) Release(_ context.Context, id int64) error {
	return r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return domain.ErrNotFound
		}
		if !item.CanRelease() {
			return domain.ErrOverReturn
		}
		item.AvailableCopies++
		item.UpdatedAt = time.Now()
		st.items[id] = item
		return nil
	})
}

type loanRepository struct{ *repos }

func (r loanRepository) Create(_ context.Context, l *domain.Loan) error {
	return r.run(func(st *state) error {
		l.ID = st.id()
		st.loans[l.ID] = *l
		return nil
	})
}

func (r loanRepository) GetByID(_ context.Context, id int64) (*domain.Loan, error) {
	var out domain.Loan
	err := r.run(func(st *state) error {
		l, ok := st.loans[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r loanRepository) Close(_ context.Context, l *domain.Loan) error {
	return r.run(func(st *state) error {
		stored, ok := st.loans[l.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if stored.Status != domain.LoanStatusActive {
			return domain.ErrAlreadyClosed
		}
		stored.ReturnedAt = l.ReturnedAt
		stored.Status = l.Status
		stored.FineAmount = l.FineAmount
		st.loans[l.ID] = stored
		return nil
	})
}

func (r loanRepository) ListByBorrower(_ context.Context, borrowerID int64) ([]domain.Loan, error) {
	var out []domain.Loan
	err := r.run(func(st *state) error {
		all := sortedValues(st.loans, func(a, b domain.Loan) bool { return a.BorrowedAt.After(b.BorrowedAt) })
		for _, l := range all {
			if l.BorrowerID == borrowerID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

func (r loanRepository) List(_ context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	filter = filter.Normalize()
	var (
		out   []domain.Loan
		total int32
	)
	err := r.run(func(st *state) error {
		all := sortedValues(st.loans, func(a, b domain.Loan) bool {
			if a.BorrowedAt.Equal(b.BorrowedAt) {
				return a.ID > b.ID
			}
			return a.BorrowedAt.After(b.BorrowedAt)
		})
		var matched []domain.Loan
		for _, l := range all {
			if filter.Status != "" && l.Status != filter.Status {
				continue
			}
			if filter.BorrowerID != 0 && l.BorrowerID != filter.BorrowerID {
				continue
			}
			if filter.ItemID != 0 && l.ItemID != filter.ItemID {
				continue
			}
			matched = append(matched, l)
		}
		total = int32(len(matched))
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, total, err
}

func (r loanRepository) ListActiveDueBefore(_ context.Context, t time.Time) ([]domain.Loan, error) {
	var out []domain.Loan
	err := r.run(func(st *state) error {
		all := sortedValues(st.loans, func(a, b domain.Loan) bool { return a.DueAt.Before(b.DueAt) })
		for _, l := range all {
			if l.Status == domain.LoanStatusActive && l.DueAt.Before(t) {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

type archiveRepository struct{ *repos }

func (r archiveRepository) Record(_ context.Context, e *domain.ArchiveEntry) (int64, error) {
	var id int64
	err := r.run(func(st *state) error {
		for _, existing := range st.archive {
			if existing.LoanID == e.LoanID {
				id = existing.ID
				return nil
			}
		}
		e.ID = st.id()
		st.archive[e.ID] = *e
		id = e.ID
		return nil
	})
	return id, err
}

func (r archiveRepository) GetByLoanID(_ context.Context, loanID int64) (*domain.ArchiveEntry, error) {
	var out *domain.ArchiveEntry
	err := r.run(func(st *state) error {
		for _, e := range st.archive {
			if e.LoanID == loanID {
				found := e
				out = &found
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r archiveRepository) List(_ context.Context, limit, offset int) ([]domain.ArchiveEntry, int32, error) {
	var (
		out   []domain.ArchiveEntry
		total int32
	)
	err := r.run(func(st *state) error {
		all := sortedValues(st.archive, func(a, b domain.ArchiveEntry) bool {
			if a.ArchivedAt.Equal(b.ArchivedAt) {
				return a.ID > b.ID
			}
			return a.ArchivedAt.After(b.ArchivedAt)
		})
		total = int32(len(all))
		out = page(all, limit, offset)
		return nil
	})
	return out, total, err
}
