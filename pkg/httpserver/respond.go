package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

// writeDomainError maps ledger and order errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var orderErr *types.OrderError
	if errors.As(err, &orderErr) {
		status := http.StatusBadRequest
		switch orderErr.Code {
		case types.ErrCodeNotEnoughFunds:
			status = http.StatusPaymentRequired
		case types.ErrCodeNotOwner:
			status = http.StatusForbidden
		case types.ErrCodeNotCancellable:
			status = http.StatusConflict
		}
		writeJSON(w, logger, status, ErrorResponse{Error: orderErr.Message, Code: orderErr.Code})
		return
	}

	switch {
	case errors.Is(err, types.ErrMarketNotFound),
		errors.Is(err, types.ErrOrderNotFound),
		errors.Is(err, types.ErrUserNotFound),
		errors.Is(err, types.ErrPositionNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrTickerTaken),
		errors.Is(err, types.ErrEmailTaken),
		errors.Is(err, types.ErrMarketSettled):
		writeError(w, logger, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrInvalidOutcome):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrInsufficientFunds):
		writeError(w, logger, http.StatusPaymentRequired, err.Error())
	default:
		logger.Error("request-failed", zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, "internal error")
	}
}

// userIDFromRequest reads the authenticated user from the X-User-ID header.
func userIDFromRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("missing X-User-ID header")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid X-User-ID header")
	}
	return id, nil
}
