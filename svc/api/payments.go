package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/binder"
	"github.com/dmitrymomot/creditgate/pkg/qrcode"
)

type invoiceResponse struct {
	InvoiceID  string       `json:"invoice_id"`
	InvoiceURL string       `json:"invoice_url"`
	Kind       billing.Kind `json:"kind"`
	Amount     string       `json:"amount"`
	Currency   string       `json:"currency"`
	Credits    int64        `json:"credits,omitempty"`
	Reused     bool         `json:"reused"`
	QRCode     string       `json:"qr_code,omitempty"`
}

// displayAmount renders minor units with two decimals ("20.00").
func displayAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/billing.MinorUnitsPerMajor, amount%billing.MinorUnitsPerMajor)
}

func (h *handlers) invoiceReply(w http.ResponseWriter, in billing.Intent, reused bool) {
	h.deps.Metrics.InvoiceCreated(string(in.Kind), reused)

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	qr, _ := qrcode.DataURI(in.InvoiceURL)
	writeJSON(w, status, invoiceResponse{
		InvoiceID:  in.InvoiceID,
		InvoiceURL: in.InvoiceURL,
		Kind:       in.Kind,
		Amount:     displayAmount(in.Amount),
		Currency:   in.Currency,
		Credits:    in.CreditedQuantity,
		Reused:     reused,
		QRCode:     qr,
	})
}

func (h *handlers) createSubscription(w http.ResponseWriter, r *http.Request) {
	in, reused, err := h.deps.Checkout.Subscribe(r.Context(), caller(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	h.invoiceReply(w, in, reused)
}

type creditsRequest struct {
	Amount  int64 `json:"amount"`
	Credits int64 `json:"credits,omitempty"`
}

func (h *handlers) createCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if err := binder.JSON(r, &req, false); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	in, reused, err := h.deps.Checkout.BuyCredits(r.Context(), caller(r), req.Amount, req.Credits)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	h.invoiceReply(w, in, reused)
}

// ownIntent loads the intent named in the path. Intents of other users
// answer 404, the same as missing ones.
func (h *handlers) ownIntent(r *http.Request) (billing.Intent, error) {
	in, err := h.deps.Registry.Find(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		return billing.Intent{}, err
	}
	if in.UserID != caller(r) {
		return billing.Intent{}, billing.ErrIntentNotFound
	}
	return in, nil
}

type paymentResponse struct {
	InvoiceID      string               `json:"invoice_id"`
	InvoiceURL     string               `json:"invoice_url"`
	Kind           billing.Kind         `json:"kind"`
	Amount         string               `json:"amount"`
	Currency       string               `json:"currency"`
	Credits        int64                `json:"credits,omitempty"`
	Status         billing.IntentStatus `json:"status"`
	ProviderStatus string               `json:"provider_status,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ResolvedAt     *time.Time           `json:"resolved_at,omitempty"`
}

func toPayment(in billing.Intent) paymentResponse {
	return paymentResponse{
		InvoiceID:      in.InvoiceID,
		InvoiceURL:     in.InvoiceURL,
		Kind:           in.Kind,
		Amount:         displayAmount(in.Amount),
		Currency:       in.Currency,
		Credits:        in.CreditedQuantity,
		Status:         in.Status,
		ProviderStatus: in.ProviderStatus,
		CreatedAt:      in.CreatedAt,
		ResolvedAt:     in.ResolvedAt,
	}
}

func (h *handlers) payment(w http.ResponseWriter, r *http.Request) {
	in, err := h.ownIntent(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayment(in))
}

func (h *handlers) paymentQR(w http.ResponseWriter, r *http.Request) {
	in, err := h.ownIntent(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := qrcode.PNG(in.InvoiceURL, qrcode.WithSize(size))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	intents, err := h.deps.Registry.List(r.Context(), caller(r), limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	out := make([]paymentResponse, 0, len(intents))
	for _, in := range intents {
		out = append(out, toPayment(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

type auditResponse struct {
	Records    []audit.Record `json:"records"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func (h *handlers) auditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, next, err := h.deps.Audit.Find(r.Context(), audit.Criteria{
		UserID: caller(r),
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Records: records, NextCursor: next})
}
