package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/logger"
)

// OutcomeStatus is the body status returned to the provider.
type OutcomeStatus string

const (
	OutcomeSuccess      OutcomeStatus = "success"
	OutcomeAcknowledged OutcomeStatus = "acknowledged"
	OutcomeIgnored      OutcomeStatus = "ignored"
)

const (
	ReasonUnknownInvoice  = "unknown_invoice"
	ReasonMalformedOrder  = "malformed_order"
	ReasonNonFinalStatus  = "non_final_status"
	ReasonPaymentFailed   = "payment_failed"
	ReasonPaymentExpired  = "payment_expired"
	ReasonAlreadyResolved = "already_resolved"
	ReasonLatePayment     = "late_payment"
)

// Outcome reports how a recognised callback was handled.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	InvoiceID string        `json:"-"`
}

// ClassifyStatus maps a provider payment status to the intent status it
// drives. Non-final and unknown statuses map to IntentPending.
func ClassifyStatus(providerStatus string) IntentStatus {
	switch providerStatus {
	case "finished", "confirmed":
		return IntentFinished
	case "failed", "refunded":
		return IntentFailed
	case "expired":
		return IntentExpired
	default:
		return IntentPending
	}
}

// SignatureVerifier authenticates a raw callback body.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) error
}

// Applier reconciles provider callbacks into the ledger, applying each
// distinct payment event at most once.
type Applier struct {
	verifier    SignatureVerifier
	registry    *Registry
	settlements SettlementStore
	recorder    audit.Recorder
	policy      entitlement.Policy
	guard       DeliveryGuard
	now         func() time.Time
	log         *slog.Logger
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithDeliveryGuard replaces the in-process guard.
func WithDeliveryGuard(g DeliveryGuard) ApplierOption {
	return func(a *Applier) {
		if g != nil {
			a.guard = g
		}
	}
}

// WithApplierClock replaces time.Now.
func WithApplierClock(now func() time.Time) ApplierOption {
	return func(a *Applier) {
		if now != nil {
			a.now = now
		}
	}
}

// WithApplierLogger sets the applier logger.
func WithApplierLogger(l *slog.Logger) ApplierOption {
	return func(a *Applier) {
		if l != nil {
			a.log = l
		}
	}
}

// NewApplier wires the reconciliation flow. Every collaborator is required.
func NewApplier(
	verifier SignatureVerifier,
	registry *Registry,
	settlements SettlementStore,
	recorder audit.Recorder,
	policy entitlement.Policy,
	opts ...ApplierOption,
) *Applier {
	if verifier == nil || registry == nil || settlements == nil || recorder == nil {
		panic("billing: applier requires verifier, registry, settlement store and recorder")
	}
	a := &Applier{
		verifier:    verifier,
		registry:    registry,
		settlements: settlements,
		recorder:    recorder,
		policy:      policy,
		guard:       NewLocalGuard(),
		now:         time.Now,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle processes one raw callback. Errors are ErrInvalidSignature,
// ErrInvalidPayload, ErrDeliveryInProgress or ErrStoreUnavailable; every
// other case is an Outcome the provider must not retry.
func (a *Applier) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if err := a.verifier.Verify(payload, signature); err != nil {
		a.log.WarnContext(ctx, "rejected callback with invalid signature",
			logger.Component("webhook"), logger.Error(err))
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	cb, err := ParseCallback(payload)
	if err != nil {
		a.log.WarnContext(ctx, "rejected unreadable callback",
			logger.Component("webhook"), logger.Error(err))
		return Outcome{}, err
	}

	invoiceID, paymentID := string(cb.InvoiceID), string(cb.PaymentID)
	log := a.log.With(logger.Component("webhook"), logger.InvoiceID(invoiceID),
		logger.PaymentID(paymentID), logger.ProviderStatus(cb.PaymentStatus))

	release, err := a.guard.Acquire(ctx, DeliveryKey(invoiceID, paymentID))
	switch {
	case errors.Is(err, ErrDeliveryInProgress):
		log.InfoContext(ctx, "callback delivery already in progress")
		return Outcome{}, err
	case err != nil:
		log.WarnContext(ctx, "delivery guard unavailable, continuing without it", logger.Error(err))
	default:
		defer release()
	}

	outcome, err := a.apply(ctx, log, cb)
	outcome.InvoiceID = invoiceID
	return outcome, err
}

func (a *Applier) apply(ctx context.Context, log *slog.Logger, cb Callback) (Outcome, error) {
	invoiceID, paymentID := string(cb.InvoiceID), string(cb.PaymentID)

	intent, err := a.registry.Find(ctx, invoiceID)
	if errors.Is(err, ErrIntentNotFound) {
		if cb.OrderID != "" {
			if _, derr := DecodeOrder(cb.OrderID); derr != nil {
				log.WarnContext(ctx, "callback with malformed order id", logger.OrderID(cb.OrderID))
				return Outcome{Status: OutcomeAcknowledged, Reason: ReasonMalformedOrder}, nil
			}
		}
		log.WarnContext(ctx, "callback for unknown invoice", logger.OrderID(cb.OrderID))
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonUnknownInvoice}, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to load payment intent", logger.Error(err))
		return Outcome{}, storeError(err)
	}

	if cb.OrderID != "" && cb.OrderID != intent.OrderID {
		log.WarnContext(ctx, "callback order id does not match the invoice",
			logger.OrderID(cb.OrderID), slog.String("expected_order_id", intent.OrderID))
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonMalformedOrder}, nil
	}

	switch target := ClassifyStatus(cb.PaymentStatus); target {
	case IntentPending:
		if err := a.registry.Annotate(ctx, invoiceID, cb.PaymentStatus, paymentID); err != nil {
			log.ErrorContext(ctx, "failed to annotate payment intent", logger.Error(err))
			return Outcome{}, err
		}
		log.DebugContext(ctx, "non-final payment status recorded")
		return Outcome{Status: OutcomeIgnored, Reason: ReasonNonFinalStatus}, nil

	case IntentFailed, IntentExpired:
		return a.fail(ctx, log, intent, target, cb)

	default:
		return a.settle(ctx, log, intent, cb)
	}
}

func (a *Applier) fail(ctx context.Context, log *slog.Logger, intent Intent, target IntentStatus, cb Callback) (Outcome, error) {
	if intent.Status.IsTerminal() {
		log.InfoContext(ctx, "failure status for resolved intent", slog.String("status", string(intent.Status)))
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonAlreadyResolved}, nil
	}

	_, err := a.registry.MarkStatus(ctx, intent.InvoiceID, target, string(cb.PaymentID), cb.PaymentStatus)
	if errors.Is(err, ErrAlreadyResolved) {
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonAlreadyResolved}, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to resolve payment intent", logger.Error(err))
		return Outcome{}, storeError(err)
	}

	log.InfoContext(ctx, "payment intent closed without payment",
		logger.UserID(intent.UserID), slog.String("status", string(target)))

	reason := ReasonPaymentFailed
	if target == IntentExpired {
		reason = ReasonPaymentExpired
	}
	return Outcome{Status: OutcomeAcknowledged, Reason: reason}, nil
}

func (a *Applier) settle(ctx context.Context, log *slog.Logger, intent Intent, cb Callback) (Outcome, error) {
	switch intent.Status {
	case IntentFinished:
		log.InfoContext(ctx, "duplicate success callback")
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonAlreadyResolved}, nil
	case IntentExpired, IntentFailed:
		return a.late(ctx, log, intent, cb)
	}

	now := a.now()
	s := Settlement{
		InvoiceID:      intent.InvoiceID,
		PaymentID:      string(cb.PaymentID),
		ProviderStatus: cb.PaymentStatus,
		UserID:         intent.UserID,
		Kind:           intent.Kind,
		InitialQuota:   a.policy.InitialQuota,
		At:             now,
	}
	switch intent.Kind {
	case KindSubscription:
		until := a.policy.PremiumExpiry(now)
		s.Credits = a.policy.PremiumBonus
		s.PremiumUntil = &until
	default:
		s.Credits = intent.CreditedQuantity
	}
	s.Audit = audit.Stamp(a.auditRecord(audit.ActionSettled, intent, cb, s.Credits), now)

	err := a.settlements.Settle(ctx, s)
	if errors.Is(err, ErrAlreadyResolved) {
		log.InfoContext(ctx, "payment already settled by a concurrent delivery")
		return Outcome{Status: OutcomeAcknowledged, Reason: ReasonAlreadyResolved}, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to settle payment", logger.Error(err))
		return Outcome{}, storeError(err)
	}

	log.InfoContext(ctx, "payment settled",
		logger.UserID(intent.UserID), slog.String("kind", string(intent.Kind)),
		slog.Int64("credits", s.Credits))
	return Outcome{Status: OutcomeSuccess}, nil
}

// late handles money received for an intent that was already closed.
// Nothing is granted; the event is audited for manual reconciliation.
func (a *Applier) late(ctx context.Context, log *slog.Logger, intent Intent, cb Callback) (Outcome, error) {
	rec := a.auditRecord(audit.ActionLatePayment, intent, cb, 0)
	if _, err := a.recorder.Record(ctx, rec); err != nil && !errors.Is(err, audit.ErrDuplicateRecord) {
		log.ErrorContext(ctx, "failed to audit late payment", logger.Error(err))
		return Outcome{}, storeError(err)
	}

	log.ErrorContext(ctx, "payment received for a closed intent, manual reconciliation required",
		logger.UserID(intent.UserID), slog.String("status", string(intent.Status)),
		slog.Int64("amount", intent.Amount), slog.String("currency", intent.Currency))
	return Outcome{Status: OutcomeAcknowledged, Reason: ReasonLatePayment}, nil
}

func (a *Applier) auditRecord(action audit.Action, intent Intent, cb Callback, credits int64) audit.Record {
	return audit.Record{
		Action:         action,
		InvoiceID:      intent.InvoiceID,
		PaymentID:      string(cb.PaymentID),
		UserID:         intent.UserID,
		Kind:           string(intent.Kind),
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Credits:        credits,
		ProviderStatus: cb.PaymentStatus,
	}
}
