package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/logger"
)

type webhookResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// webhook applies a NowPayments IPN callback. Once the body is read the
// work is detached from the request context, so a dropped connection
// cannot abort a settlement half way.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxWebhookBody))
	if err != nil {
		h.webhookReply(w, http.StatusBadRequest, webhookResponse{Status: "rejected", Reason: "unreadable_body"}, start)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.cfg.WebhookTimeout)
	defer cancel()

	outcome, err := h.deps.Applier.Handle(ctx, body, r.Header.Get(h.cfg.SignatureHeader))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		h.webhookReply(w, http.StatusUnauthorized, webhookResponse{Status: "rejected", Reason: "invalid_signature"}, start)
	case errors.Is(err, billing.ErrInvalidPayload):
		h.webhookReply(w, http.StatusBadRequest, webhookResponse{Status: "rejected", Reason: "invalid_payload"}, start)
	case errors.Is(err, billing.ErrDeliveryInProgress):
		h.webhookReply(w, http.StatusConflict, webhookResponse{Status: "rejected", Reason: "delivery_in_progress"}, start)
	case err != nil:
		h.log.ErrorContext(ctx, "failed to apply payment callback",
			logger.Component("webhook"), logger.InvoiceID(outcome.InvoiceID), logger.Error(err))
		h.webhookReply(w, http.StatusInternalServerError, webhookResponse{Status: "error", Reason: "internal_error"}, start)
	default:
		if outcome.Reason == billing.ReasonLatePayment {
			h.deps.Metrics.LatePayment()
		}
		h.webhookReply(w, http.StatusOK, webhookResponse{Status: string(outcome.Status), Reason: outcome.Reason}, start)
	}
}

func (h *handlers) webhookReply(w http.ResponseWriter, status int, resp webhookResponse, start time.Time) {
	h.deps.Metrics.ObserveWebhook(resp.Status, resp.Reason, time.Since(start))
	writeJSON(w, status, resp)
}
