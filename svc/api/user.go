package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/binder"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/svc/completion"
)

type statusResponse struct {
	UserID             string             `json:"user_id"`
	Credits            int64              `json:"credits"`
	IsPremium          bool               `json:"is_premium"`
	DaysLeft           int                `json:"days_left"`
	Status             entitlement.Status `json:"status"`
	SubscriptionExpiry *time.Time         `json:"subscription_expiry,omitempty"`
}

func (h *handlers) userStatus(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Entitlements.Get(r.Context(), caller(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, statusResponse{
		UserID:             e.UserID,
		Credits:            e.CreditBalance,
		IsPremium:          e.IsPremiumAt(now),
		DaysLeft:           e.DaysLeftAt(now),
		Status:             e.Status,
		SubscriptionExpiry: e.SubscriptionExpiry,
	})
}

type queryRequest struct {
	Query       string                 `json:"query"`
	Environment completion.Environment `json:"environment"`
}

type queryResponse struct {
	Response         string          `json:"response"`
	Mode             completion.Mode `json:"mode"`
	CreditsRemaining int64           `json:"credits_remaining"`
}

// query gates one AI query: premium users pass free, others pay a credit
// that is refunded when the completion fails.
func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := binder.JSON(r, &req, false); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, r, h.log, completion.ErrEmptyQuery)
		return
	}
	if h.deps.Completer == nil {
		respondError(w, r, h.log, completion.ErrNotConfigured)
		return
	}

	ctx := r.Context()
	userID := caller(r)

	decision, err := h.deps.Entitlements.TryConsume(ctx, userID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	h.deps.Metrics.GateDecision(decision.Allowed, decision.Premium)
	if !decision.Allowed {
		writeError(w, http.StatusPaymentRequired, string(decision.Reason), entitlement.ErrInsufficientCredits.Error())
		return
	}

	mode := completion.ModeFor(decision.Premium)
	answer, err := h.deps.Completer.Complete(ctx, completion.Request{
		Query:       req.Query,
		Mode:        mode,
		Environment: req.Environment,
	})
	if err != nil {
		if !decision.Premium {
			h.refund(r, userID)
		}
		if errors.Is(err, completion.ErrUnavailable) || errors.Is(err, completion.ErrEmptyAnswer) {
			respondError(w, r, h.log, err)
			return
		}
		respondError(w, r, h.log, errors.Join(completion.ErrUnavailable, err))
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Response:         answer,
		Mode:             mode,
		CreditsRemaining: decision.Remaining,
	})
}

// refund returns the credit taken for a failed query. The request context
// may already be cancelled, so the refund runs detached.
func (h *handlers) refund(r *http.Request, userID string) {
	ctx := context.WithoutCancel(r.Context())
	if _, err := h.deps.Entitlements.Refund(ctx, userID, 1); err != nil {
		h.log.ErrorContext(ctx, "failed to refund query credit",
			logger.Component("api"), logger.UserID(userID), logger.Error(err))
		return
	}
	h.log.InfoContext(ctx, "refunded query credit", logger.Component("api"), logger.UserID(userID), slog.Int64("credits", 1))
}
