package memory

import (
	"context"

	"bibliosys-backend/internal/domain"
)

type borrowRequestRepository struct{ *repos }

func (r borrowRequestRepository) Create(_ context.Context, req *domain.BorrowRequest) error {
	return r.run(func(st *state) error {
		for _, existing := range st.borrowRequests {
			if existing.Status == domain.RequestStatusPending &&
				existing.RequesterID == req.RequesterID && existing.ItemID == req.ItemID {
				return domain.ErrDuplicate
			}
		}
		req.ID = st.id()
		st.borrowRequests[req.ID] = *req
		return nil
	})
}

func (r borrowRequestRepository) GetByID(_ context.Context, id int64) (*domain.BorrowRequest, error) {
	var out domain.BorrowRequest
	err := r.run(func(st *state) error {
		req, ok := st.borrowRequests[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r borrowRequestRepository) GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRequest, error) {
	return r.GetByID(ctx, id)
}

func (r borrowRequestRepository) SaveDecision(_ context.Context, req *domain.BorrowRequest) error {
	return r.run(func(st *state) error {
		stored, ok := st.borrowRequests[req.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if stored.Status != domain.RequestStatusPending {
			return domain.ErrAlreadyDecided
		}
		stored.Status = req.Status
		stored.DecidedBy = req.DecidedBy
		stored.DecidedAt = req.DecidedAt
		stored.DecisionNote = req.DecisionNote
		st.borrowRequests[req.ID] = stored
		return nil
	})
}

func (r borrowRequestRepository) ListPending(_ context.Context, filter domain.RequestFilter) ([]domain.BorrowRequest, int32, error) {
	filter = filter.Normalize()
	var (
		out   []domain.BorrowRequest
		total int32
	)
	err := r.run(func(st *state) error {
		all := sortedValues(st.borrowRequests, func(a, b domain.BorrowRequest) bool {
			if a.SubmittedAt.Equal(b.SubmittedAt) {
				return a.ID < b.ID
			}
			return a.SubmittedAt.Before(b.SubmittedAt)
		})
		var matched []domain.BorrowRequest
		for _, req := range all {
			if req.Status != domain.RequestStatusPending ||
				(filter.RequesterID != 0 && req.RequesterID != filter.RequesterID) ||
				(filter.ItemID != 0 && req.ItemID != filter.ItemID) {
				continue
			}
			matched = append(matched, req)
		}
		total = int32(len(matched))
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, total, err
}

type returnRequestRepository struct{ *repos }

func (r returnRequestRepository) Create(_ context.Context, req *domain.ReturnRequest) error {
	return r.run(func(st *state) error {
		for _, existing := range st.returnRequests {
			if existing.Status == domain.RequestStatusPending && existing.LoanID == req.LoanID {
				return domain.ErrDuplicate
			}
		}
		req.ID = st.id()
		st.returnRequests[req.ID] = *req
		return nil
	})
}

func (r returnRequestRepository) GetByID(_ context.Context, id int64) (*domain.ReturnRequest, error) {
	var out domain.ReturnRequest
	err := r.run(func(st *state) error {
		req, ok := st.returnRequests[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r returnRequestRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ReturnRequest, error) {
	return r.GetByID(ctx, id)
}

func (r returnRequestRepository) SaveDecision(_ context.Context, req *domain.ReturnRequest) error {
	return r.run(func(st *state) error {
		stored, ok := st.returnRequests[req.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if stored.Status != domain.RequestStatusPending {
			return domain.ErrAlreadyDecided
		}
		stored.Status = req.Status
		stored.DecidedBy = req.DecidedBy
		stored.DecidedAt = req.DecidedAt
		stored.DecisionNote = req.DecisionNote
		st.returnRequests[req.ID] = stored
		return nil
	})
}

func (r returnRequestRepository) ListPending(_ context.Context, filter domain.RequestFilter) ([]domain.ReturnRequest, int32, error) {
	filter = filter.Normalize()
	var (
		out   []domain.ReturnRequest
		total int32
	)
	err := r.run(func(st *state) error {
		all := sortedValues(st.returnRequests, func(a, b domain.ReturnRequest) bool {
			if a.SubmittedAt.Equal(b.SubmittedAt) {
				return a.ID < b.ID
			}
			return a.SubmittedAt.Before(b.SubmittedAt)
		})
		var matched []domain.ReturnRequest
		for _, req := range all {
			if req.Status != domain.RequestStatusPending ||
				(filter.RequesterID != 0 && req.RequesterID != filter.RequesterID) ||
				(filter.LoanID != 0 && req.LoanID != filter.LoanID) {
				continue
			}
			matched = append(matched, req)
		}
		total = int32(len(matched))
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, total, err
}
