package http

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/security"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type page[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()), "error", err)
		if code != "INVARIANT_VIOLATION" {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

// classify maps service errors onto HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case domain.IsInvariantViolation(err):
		return http.StatusInternalServerError, "INVARIANT_VIOLATION"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrAlreadyDecided):
		return http.StatusConflict, "ALREADY_DECIDED"
	case errors.Is(err, domain.ErrAlreadyClosed):
		return http.StatusConflict, "ALREADY_CLOSED"
	case errors.Is(err, domain.ErrLoanNotActive):
		return http.StatusConflict, "LOAN_NOT_ACTIVE"
	case errors.Is(err, domain.ErrUniqueViolation):
		return http.StatusConflict, "UNIQUE_VIOLATION"
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden, "NOT_OWNER"
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, domain.ErrNoReaderProfile):
		return http.StatusForbidden, "NO_READER_PROFILE"
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusForbidden, "ACCOUNT_INACTIVE"
	case errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest, "INVALID_DECISION"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, security.ErrInvalidToken), errors.Is(err, security.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, domain.ErrAllocationExhausted):
		return http.StatusServiceUnavailable, "ALLOCATION_EXHAUSTED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := muxVar(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(domain.ErrInvalidInput, errors.New("invalid "+name))
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Join(domain.ErrInvalidInput, errors.New("invalid "+name))
	}
	return v, nil
}

func pageQuery(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
