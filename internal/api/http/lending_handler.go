package http

import (
	"errors"
	"net/http"
	"time"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/service"
)

type addStockRequest struct {
	Title       string `json:"title"`
	TotalCopies int32  `json:"total_copies"`
}

func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.Inventory.AddStock(r.Context(), principal(r), req.Title, req.TotalCopies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type submitBorrowRequest struct {
	ItemID  int64  `json:"item_id"`
	Comment string `json:"comment"`
}

func (h *Handler) SubmitBorrow(w http.ResponseWriter, r *http.Request) {
	var req submitBorrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Workflow.SubmitBorrow(r.Context(), principal(r), req.ItemID, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func requestFilter(r *http.Request) (domain.RequestFilter, error) {
	limit, offset, err := pageQuery(r)
	if err != nil {
		return domain.RequestFilter{}, err
	}
	filter := domain.RequestFilter{Limit: limit, Offset: offset}
	for name, dst := range map[string]*int64{
		"requester_id": &filter.RequesterID,
		"item_id":      &filter.ItemID,
		"loan_id":      &filter.LoanID,
	} {
		v, err := queryInt(r, name)
		if err != nil {
			return domain.RequestFilter{}, err
		}
		*dst = int64(v)
	}
	return filter, nil
}

func (h *Handler) ListPendingBorrowRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.svc.Workflow.ListPendingBorrowRequests(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.BorrowRequest]{Items: items, Total: total})
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
	// ReturnedAt is only read for return decisions.
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

func (h *Handler) decodeDecision(r *http.Request) (int64, decisionRequest, domain.Decision, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, decisionRequest{}, "", err
	}
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, decisionRequest{}, "", err
	}
	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		return 0, decisionRequest{}, "", err
	}
	return id, req, decision, nil
}

func (h *Handler) DecideBorrow(w http.ResponseWriter, r *http.Request) {
	id, req, decision, err := h.decodeDecision(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.Workflow.DecideBorrow(r.Context(), principal(r), id, decision, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type submitReturnRequest struct {
	LoanID  int64  `json:"loan_id"`
	Comment string `json:"comment"`
}

func (h *Handler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	var req submitReturnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Workflow.SubmitReturn(r.Context(), principal(r), req.LoanID, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListPendingReturnRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.svc.Workflow.ListPendingReturnRequests(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.ReturnRequest]{Items: items, Total: total})
}

func (h *Handler) DecideReturn(w http.ResponseWriter, r *http.Request) {
	id, req, decision, err := h.decodeDecision(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var returnedAt time.Time
	if req.ReturnedAt != nil {
		returnedAt = *req.ReturnedAt
	}
	result, err := h.svc.Workflow.DecideReturn(r.Context(), principal(r), id, decision, returnedAt, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListMyLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.Loans.ListBorrowerLoans(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": loans})
}

func loanFilter(r *http.Request) (domain.LoanFilter, error) {
	limit, offset, err := pageQuery(r)
	if err != nil {
		return domain.LoanFilter{}, err
	}
	filter := domain.LoanFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if filter.Status, err = domain.ParseLoanStatus(raw); err != nil {
			return domain.LoanFilter{}, err
		}
	}
	for name, dst := range map[string]*int64{
		"borrower_id": &filter.BorrowerID,
		"item_id":     &filter.ItemID,
	} {
		v, err := queryInt(r, name)
		if err != nil {
			return domain.LoanFilter{}, err
		}
		*dst = int64(v)
	}
	return filter, nil
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter, err := loanFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loans, total, err := h.svc.Loans.List(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.Loan]{Items: loans, Total: total})
}

type loanResponse struct {
	*service.LoanDetail
	Overdue bool `json:"overdue"`
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.svc.Loans.GetLoan(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanResponse{LoanDetail: detail, Overdue: detail.IsOverdue(h.clock())})
}

type overdueResponse struct {
	LoanID  int64     `json:"loan_id"`
	At      time.Time `json:"at"`
	Overdue bool      `json:"overdue"`
}

// LoanIsOverdue answers for the current time unless ?at=<RFC3339> is given.
func (h *Handler) LoanIsOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	at := h.clock()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, errors.Join(domain.ErrInvalidInput, err))
			return
		}
	}
	overdue, err := h.svc.Workflow.IsOverdue(r.Context(), id, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overdueResponse{LoanID: id, At: at, Overdue: overdue})
}

func (h *Handler) ListArchive(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, total, err := h.svc.Archive.List(r.Context(), principal(r), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.ArchiveEntry]{Items: entries, Total: total})
}
