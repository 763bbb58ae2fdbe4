package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/logger"
)

const (
	DefaultPendingTTL      = time.Hour
	DefaultProviderTimeout = 30 * time.Second
)

// CreateRequest asks the registry to open an invoice. Amount is in minor
// units; CreditedQuantity is required for credit purchases and must be zero
// for subscriptions.
type CreateRequest struct {
	UserID           string
	Kind             Kind
	Amount           int64
	Currency         string
	CreditedQuantity int64
	Description      string
}

func (r CreateRequest) validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidIntent)
	case !r.Kind.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidIntent)
	case r.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidIntent)
	case r.Kind == KindCredits && r.CreditedQuantity <= 0:
		return fmt.Errorf("%w: credit purchase without credits", ErrInvalidIntent)
	case r.Kind == KindSubscription && r.CreditedQuantity != 0:
		return fmt.Errorf("%w: subscription with credited quantity", ErrInvalidIntent)
	}
	return nil
}

// Registry records every outbound invoice before any callback can reference
// it and owns intent status changes.
type Registry struct {
	store    IntentStore
	provider InvoiceProvider
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPendingTTL sets how long a pending intent is reused for an identical
// request before it is superseded.
func WithPendingTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRegistryClock replaces time.Now.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry creates a registry. Panics when store is nil. A nil provider
// leaves Create failing with ErrProviderNotConfig while lookups keep working.
func NewRegistry(store IntentStore, provider InvoiceProvider, opts ...RegistryOption) *Registry {
	if store == nil {
		panic("billing: IntentStore is required")
	}
	r := &Registry{
		store:    store,
		provider: provider,
		ttl:      DefaultPendingTTL,
		timeout:  DefaultProviderTimeout,
		now:      time.Now,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens an invoice and records it as a pending intent. An identical,
// still fresh pending intent of the same kind is returned instead with
// reused set. A stale or different one is expired first. When the provider
// fails or times out no intent is written.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (Intent, bool, error) {
	if err := req.validate(); err != nil {
		return Intent{}, false, err
	}
	if r.provider == nil {
		return Intent{}, false, ErrProviderNotConfig
	}

	now := r.now()
	existing, err := r.store.FindPendingIntent(ctx, req.UserID, req.Kind)
	switch {
	case err == nil:
		if r.reusable(existing, req, now) {
			return existing, true, nil
		}
		if err := r.supersede(ctx, existing, now); err != nil {
			return Intent{}, false, err
		}
	case errors.Is(err, ErrIntentNotFound):
	default:
		return Intent{}, false, storeError(err)
	}

	orderID, err := EncodeOrder(req.UserID, req.Kind, NewNonce(now))
	if err != nil {
		return Intent{}, false, err
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	inv, err := r.provider.CreateInvoice(pctx, InvoiceRequest{
		OrderID:     orderID,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	cancel()
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRejected) {
			return Intent{}, false, err
		}
		return Intent{}, false, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	intent := Intent{
		InvoiceID:        inv.ID,
		UserID:           req.UserID,
		OrderID:          orderID,
		Kind:             req.Kind,
		CreditedQuantity: req.CreditedQuantity,
		Amount:           req.Amount,
		Currency:         req.Currency,
		InvoiceURL:       inv.URL,
		Status:           IntentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := r.store.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, ErrPendingIntentExists) {
			// A concurrent request won the slot; its invoice is the one to pay.
			winner, ferr := r.store.FindPendingIntent(ctx, req.UserID, req.Kind)
			if ferr == nil {
				r.log.WarnContext(ctx, "discarding invoice that lost a concurrent checkout",
					logger.Component("billing"), logger.UserID(req.UserID),
					logger.InvoiceID(inv.ID), slog.String("kept_invoice_id", winner.InvoiceID))
				return winner, true, nil
			}
		}
		return Intent{}, false, storeError(err)
	}

	r.log.InfoContext(ctx, "payment intent created",
		logger.Component("billing"), logger.UserID(req.UserID), logger.InvoiceID(inv.ID),
		logger.OrderID(orderID), slog.String("kind", string(req.Kind)), slog.Int64("amount", req.Amount))

	return intent, false, nil
}

func (r *Registry) reusable(in Intent, req CreateRequest, now time.Time) bool {
	return in.InvoiceURL != "" &&
		in.Amount == req.Amount &&
		in.Currency == req.Currency &&
		in.CreditedQuantity == req.CreditedQuantity &&
		now.Sub(in.CreatedAt) < r.ttl
}

func (r *Registry) supersede(ctx context.Context, in Intent, now time.Time) error {
	_, err := r.store.UpdateIntentStatus(ctx, StatusUpdate{
		InvoiceID:      in.InvoiceID,
		From:           IntentPending,
		To:             IntentExpired,
		ProviderStatus: ProviderStatusSuperseded,
		At:             now,
	})
	if err != nil && !errors.Is(err, ErrAlreadyResolved) {
		return storeError(err)
	}
	r.log.InfoContext(ctx, "pending payment intent superseded",
		logger.Component("billing"), logger.UserID(in.UserID), logger.InvoiceID(in.InvoiceID))
	return nil
}

// Find returns the intent for invoiceID or ErrIntentNotFound.
func (r *Registry) Find(ctx context.Context, invoiceID string) (Intent, error) {
	in, err := r.store.FindIntent(ctx, invoiceID)
	if err != nil {
		return Intent{}, storeError(err)
	}
	return in, nil
}

// List returns the user's most recent intents.
func (r *Registry) List(ctx context.Context, userID string, limit int) ([]Intent, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	items, err := r.store.ListIntents(ctx, userID, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return items, nil
}

// MarkStatus moves a pending intent to a terminal status. Leaving a terminal
// status fails with ErrAlreadyResolved. Failing or expiring a subscription
// intent also reverts the owner's pending subscription flag.
func (r *Registry) MarkStatus(ctx context.Context, invoiceID string, to IntentStatus, paymentID, providerStatus string) (Intent, error) {
	current, err := r.Find(ctx, invoiceID)
	if err != nil {
		return Intent{}, err
	}
	if current.Status.IsTerminal() {
		return current, ErrAlreadyResolved
	}
	if err := IntentTransitions.Check(current.Status, to); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}

	updated, err := r.store.UpdateIntentStatus(ctx, StatusUpdate{
		InvoiceID:      invoiceID,
		From:           current.Status,
		To:             to,
		PaymentID:      paymentID,
		ProviderStatus: providerStatus,
		At:             r.now(),
		RevertPending:  current.Kind == KindSubscription && to != IntentFinished,
	})
	if err != nil {
		return Intent{}, storeError(err)
	}
	return updated, nil
}

// ExpireStale expires up to limit pending intents created before cutoff and
// returns how many it moved. Intents resolved concurrently are skipped.
func (r *Registry) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := r.store.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, storeError(err)
	}

	expired := 0
	for _, in := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		_, err := r.MarkStatus(ctx, in.InvoiceID, IntentExpired, "", ProviderStatusAbandoned)
		switch {
		case err == nil:
			expired++
			r.log.InfoContext(ctx, "abandoned payment intent expired",
				logger.Component("billing"), logger.UserID(in.UserID), logger.InvoiceID(in.InvoiceID),
				slog.Time("created_at", in.CreatedAt))
		case errors.Is(err, ErrAlreadyResolved):
		default:
			return expired, err
		}
	}
	return expired, nil
}

// Annotate records a non-final provider status on a pending intent.
func (r *Registry) Annotate(ctx context.Context, invoiceID, providerStatus, paymentID string) error {
	if err := r.store.AnnotateIntent(ctx, invoiceID, providerStatus, paymentID, r.now()); err != nil {
		return storeError(err)
	}
	return nil
}

// storeError passes domain sentinels through and wraps everything else as
// ErrStoreUnavailable.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrIntentNotFound),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrDuplicateInvoice),
		errors.Is(err, ErrPendingIntentExists),
		errors.Is(err, ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
