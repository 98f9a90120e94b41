package http

import (
	"net/http"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	Principal   domain.Principal `json:"principal"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, p, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer", Principal: *p})
}

type registerReaderRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Status    string `json:"status"`
}

type registerReaderResponse struct {
	Reader  *domain.Reader  `json:"reader"`
	Account *domain.Account `json:"account"`
}

func (h *Handler) RegisterReader(w http.ResponseWriter, r *http.Request) {
	var req registerReaderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := service.RegisterReaderInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
	}
	if req.Status != "" {
		status, err := domain.ParseReaderStatus(req.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.Status = status
	}

	reader, account, err := h.svc.Readers.Register(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerReaderResponse{Reader: reader, Account: account})
}

func (h *Handler) GetReader(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reader, err := h.svc.Readers.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeReaderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req changeStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := domain.ParseReaderStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reader, err := h.svc.Readers.ChangeStatus(r.Context(), principal(r), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}
