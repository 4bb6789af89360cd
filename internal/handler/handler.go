package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// statusFor maps a use case error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, "transient"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		return http.StatusUnprocessableEntity, "payment_not_confirmed"
	case errors.Is(err, domain.ErrInvalidPromo), errors.Is(err, domain.ErrPromoNotForVIP), errors.Is(err, domain.ErrEmptyPromo):
		return http.StatusUnprocessableEntity, "invalid_promo"
	case errors.Is(err, domain.ErrProfileIncomplete):
		return http.StatusConflict, "profile_incomplete"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// publicMessage never leaks wrapped internals for unexpected failures.
func publicMessage(err error, code string) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case code == "internal":
		return "something went wrong. Please try again"
	}
	for _, known := range []error{
		domain.ErrNotReady, domain.ErrTransient, domain.ErrUnauthenticated, domain.ErrForbidden,
		domain.ErrNotFound, domain.ErrPaymentNotConfirmed, domain.ErrInvalidPromo,
		domain.ErrPromoNotForVIP, domain.ErrEmptyPromo, domain.ErrProfileIncomplete, domain.ErrValidation,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= 500 && code == "internal" {
		logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}
	resp := errorResponse{Error: publicMessage(err, code), Code: code}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, logger, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is empty")
		}
		return domain.NewValidationError("body", "invalid request body")
	}
	return nil
}

func listingIDParam(r *http.Request) (domain.ListingID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError("id", "invalid listing id")
	}
	return domain.ListingID(id), nil
}
