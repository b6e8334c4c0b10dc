package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidArgument      = "invalid_argument"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeSelfTransfer         = "self_transfer"
	codeNameRequired         = "username_required"
	codeQuantityTooLarge     = "quantity_too_large"
	codeUserNotFound         = "user_not_found"
	codeInsufficientQuantity = "insufficient_quantity"
	codeStorageTimeout       = "storage_timeout"
	codeStorageUnavailable   = "storage_unavailable"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a service error onto a status and stable code.
// Server side failures are logged with the request's logger and answered
// without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		msg := "internal error"
		if code == codeStorageTimeout {
			msg = "storage timeout"
		}
		writeError(w, status, code, msg)
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, codeInvalidID
	case errors.Is(err, domain.ErrSelfTransfer):
		return http.StatusBadRequest, codeSelfTransfer
	case errors.Is(err, domain.ErrNameRequired):
		return http.StatusBadRequest, codeNameRequired
	case errors.Is(err, domain.ErrQuantityTooLarge):
		return http.StatusBadRequest, codeQuantityTooLarge
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, codeInvalidArgument
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, codeUserNotFound
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return http.StatusConflict, codeInsufficientQuantity
	}
	var se *domain.StorageError
	if errors.As(err, &se) && se.Timeout() {
		return http.StatusServiceUnavailable, codeStorageTimeout
	}
	return http.StatusInternalServerError, codeInternalError
}
