package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/binder"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/identity"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/qrcode"
	"github.com/dmitrymomot/creditgate/svc/completion"
)

// ErrorBody is the JSON error envelope of the /api routes.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// httpError maps a domain error to a status and an error code.
type httpError struct {
	target  error
	status  int
	code    string
	message string
}

var errorTable = []httpError{
	{identity.ErrMissingToken, http.StatusUnauthorized, "unauthorized", "bearer token required"},
	{identity.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "invalid or expired token"},
	{identity.ErrMissingSubject, http.StatusUnauthorized, "unauthorized", "token has no subject"},
	{binder.ErrMissingContentType, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json"},
	{binder.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json"},
	{binder.ErrBodyTooLarge, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large"},
	{binder.ErrInvalidJSON, http.StatusBadRequest, "invalid_json", "malformed request body"},
	{completion.ErrEmptyQuery, http.StatusBadRequest, "empty_query", "query is required"},
	{billing.ErrUnknownPack, http.StatusBadRequest, "unknown_pack", "no credit pack at that price"},
	{billing.ErrCreditsMismatch, http.StatusBadRequest, "credits_mismatch", "credits do not match the pack"},
	{billing.ErrMalformedOrder, http.StatusUnprocessableEntity, "unsupported_user_id", "user id cannot be encoded into an order id"},
	{billing.ErrInvalidKind, http.StatusUnprocessableEntity, "invalid_kind", "unknown purchase kind"},
	{billing.ErrInvalidIntent, http.StatusBadRequest, "invalid_request", "invalid payment request"},
	{billing.ErrIntentNotFound, http.StatusNotFound, "not_found", "payment not found"},
	{billing.ErrProviderNotConfig, http.StatusServiceUnavailable, "payments_unavailable", "payment service not configured"},
	{billing.ErrProviderRejected, http.StatusBadGateway, "provider_rejected", "payment provider rejected the invoice"},
	{billing.ErrProviderUnavailable, http.StatusBadGateway, "provider_unavailable", "payment provider unavailable"},
	{completion.ErrNotConfigured, http.StatusServiceUnavailable, "ai_unavailable", "AI service not configured"},
	{completion.ErrUnavailable, http.StatusServiceUnavailable, "ai_unavailable", "AI service error"},
	{completion.ErrEmptyAnswer, http.StatusServiceUnavailable, "ai_unavailable", "AI service returned no answer"},
	{qrcode.ErrInvalidSize, http.StatusBadRequest, "invalid_size", "qr size out of range"},
	{entitlement.ErrEmptyUserID, http.StatusUnauthorized, "unauthorized", "token has no subject"},
}

// respondError writes the mapped error. Unmapped errors are logged and
// reported as 500 without detail.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			writeError(w, e.status, e.code, e.message)
			return
		}
	}
	log.ErrorContext(r.Context(), "request failed",
		logger.Component("api"), slog.String("path", r.URL.Path), logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
