package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"bibliosys-backend/internal/security"
	"bibliosys-backend/internal/service"
)

// Services bundles everything the HTTP layer dispatches to.
type Services struct {
	Inventory service.InventoryLedger
	Loans     service.LoanRegister
	Archive   service.ArchivalStore
	Workflow  service.RequestWorkflow
	Readers   service.ReaderService
	Auth      service.AuthService
}

type Handler struct {
	svc   Services
	clock func() time.Time
}

func NewHandler(svc Services, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{svc: svc, clock: clock}
}

// NewRouter builds the lending API. Every route is named; the name is the
// key into config.EndpointSecurityConfig.
func NewRouter(h *Handler, tokens security.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestID, accessLog, NewAuthMiddleware(tokens).Handler)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet).Name("Healthz")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost).Name("AuthLogin")

	api.HandleFunc("/items", h.AddStock).Methods(http.MethodPost).Name("AddStock")

	api.HandleFunc("/borrow-requests", h.SubmitBorrow).Methods(http.MethodPost).Name("SubmitBorrow")
	api.HandleFunc("/borrow-requests/pending", h.ListPendingBorrowRequests).Methods(http.MethodGet).Name("ListPendingBorrowRequests")
	api.HandleFunc("/borrow-requests/{id:[0-9]+}/decision", h.DecideBorrow).Methods(http.MethodPost).Name("DecideBorrow")

	api.HandleFunc("/return-requests", h.SubmitReturn).Methods(http.MethodPost).Name("SubmitReturn")
	api.HandleFunc("/return-requests/pending", h.ListPendingReturnRequests).Methods(http.MethodGet).Name("ListPendingReturnRequests")
	api.HandleFunc("/return-requests/{id:[0-9]+}/decision", h.DecideReturn).Methods(http.MethodPost).Name("DecideReturn")

	api.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet).Name("ListLoans")
	api.HandleFunc("/loans/mine", h.ListMyLoans).Methods(http.MethodGet).Name("ListMyLoans")
	api.HandleFunc("/loans/{id:[0-9]+}", h.GetLoan).Methods(http.MethodGet).Name("GetLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/overdue", h.LoanIsOverdue).Methods(http.MethodGet).Name("LoanIsOverdue")
	api.HandleFunc("/archive", h.ListArchive).Methods(http.MethodGet).Name("ListArchive")

	api.HandleFunc("/readers", h.RegisterReader).Methods(http.MethodPost).Name("RegisterReader")
	api.HandleFunc("/readers/{id:[0-9]+}", h.GetReader).Methods(http.MethodGet).Name("GetReader")
	api.HandleFunc("/readers/{id:[0-9]+}/status", h.ChangeReaderStatus).Methods(http.MethodPut).Name("ChangeReaderStatus")

	return router
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
