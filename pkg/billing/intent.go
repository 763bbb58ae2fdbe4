package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/statemachine"
)

// IntentStatus is the lifecycle position of a payment intent.
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentFinished IntentStatus = "finished"
	IntentFailed   IntentStatus = "failed"
	IntentExpired  IntentStatus = "expired"
)

// IntentTransitions allows exactly one move out of pending.
var IntentTransitions = statemachine.NewTable[IntentStatus]().
	Allow(IntentPending, IntentFinished, IntentFailed, IntentExpired)

// IsTerminal reports whether s can no longer change.
func (s IntentStatus) IsTerminal() bool {
	return IntentTransitions.IsTerminal(s)
}

// ProviderStatusSuperseded is recorded on a pending intent replaced by a
// newer checkout request.
const ProviderStatusSuperseded = "superseded"

// ProviderStatusAbandoned is recorded on a pending intent expired by the
// sweeper after it outlived the invoice lifetime.
const ProviderStatusAbandoned = "abandoned"

// Intent records one invoice issued to the provider.
type Intent struct {
	InvoiceID        string       `json:"invoice_id"`
	UserID           string       `json:"user_id"`
	OrderID          string       `json:"order_id"`
	Kind             Kind         `json:"kind"`
	CreditedQuantity int64        `json:"credited_quantity"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	InvoiceURL       string       `json:"invoice_url"`
	Status           IntentStatus `json:"status"`
	ProviderStatus   string       `json:"provider_status,omitempty"`
	PaymentID        string       `json:"payment_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
}

// StatusUpdate is a compare-and-set of an intent status.
type StatusUpdate struct {
	InvoiceID      string
	From           IntentStatus
	To             IntentStatus
	PaymentID      string
	ProviderStatus string
	At             time.Time
	// RevertPending moves the owner's entitlement from pending back to free
	// in the same unit of work, unless another pending subscription intent
	// remains.
	RevertPending bool
}

// Settlement is the atomic unit applied for a successful payment: the
// intent moves pending -> finished, the ledger receives the delta and the
// audit row is appended. Stores apply all three or none.
type Settlement struct {
	InvoiceID      string
	PaymentID      string
	ProviderStatus string
	UserID         string
	Kind           Kind
	// Credits is added to the balance.
	Credits int64
	// PremiumUntil, when set, activates premium with this expiry.
	PremiumUntil *time.Time
	// InitialQuota seeds the ledger row when the user has none yet.
	InitialQuota int64
	At           time.Time
	Audit        audit.Record
}

// IntentStore persists payment intents.
type IntentStore interface {
	// CreateIntent inserts a pending intent. It fails with ErrDuplicateInvoice
	// when the invoice id is taken and ErrPendingIntentExists when the user
	// already has a pending intent of the same kind.
	CreateIntent(ctx context.Context, in Intent) error
	// FindIntent returns ErrIntentNotFound when absent.
	FindIntent(ctx context.Context, invoiceID string) (Intent, error)
	// FindPendingIntent returns the user's pending intent of kind, or ErrIntentNotFound.
	FindPendingIntent(ctx context.Context, userID string, kind Kind) (Intent, error)
	// UpdateIntentStatus applies u only when the stored status equals u.From,
	// otherwise it fails with ErrAlreadyResolved.
	UpdateIntentStatus(ctx context.Context, u StatusUpdate) (Intent, error)
	// AnnotateIntent records a non-final provider status on a pending intent.
	// Resolved intents are left untouched.
	AnnotateIntent(ctx context.Context, invoiceID, providerStatus, paymentID string, at time.Time) error
	// ListIntents returns the user's most recent intents, newest first.
	ListIntents(ctx context.Context, userID string, limit int) ([]Intent, error)
	// ListStalePending returns up to limit pending intents created before
	// cutoff, oldest first.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Intent, error)
}

// SettlementStore applies settlements atomically.
type SettlementStore interface {
	// Settle fails with ErrAlreadyResolved, changing nothing, when the
	// intent is no longer pending.
	Settle(ctx context.Context, s Settlement) error
}

// Store is everything the billing flow needs from persistence.
type Store interface {
	IntentStore
	SettlementStore
}
