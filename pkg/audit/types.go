package audit

import (
	"context"
	"fmt"
	"time"
)

// Action names the reconciliation event being recorded.
type Action string

const (
	// ActionSettled marks a success callback that granted an entitlement.
	ActionSettled Action = "payment.settled"
	// ActionLatePayment marks a success callback for an intent that was
	// already expired or failed. Nothing is granted; an operator must
	// reconcile it by hand.
	ActionLatePayment Action = "payment.late"
)

// Record is one row of the payment audit trail. (InvoiceID, PaymentID) is
// unique per Action across the trail.
type Record struct {
	ID             string    `json:"id"`
	Action         Action    `json:"action"`
	InvoiceID      string    `json:"invoice_id"`
	PaymentID      string    `json:"payment_id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Credits        int64     `json:"credits"`
	ProviderStatus string    `json:"provider_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the fields every record must carry.
func (r *Record) Validate() error {
	switch {
	case r.Action == "":
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	case r.InvoiceID == "":
		return fmt.Errorf("%w: invoice id is required", ErrInvalidRecord)
	case r.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	return nil
}

// Criteria filters audit queries. Results are ordered newest first.
// A non-empty Cursor returns only records older than the record with that ID.
type Criteria struct {
	UserID    string
	InvoiceID string
	Action    Action
	Cursor    string
	Limit     int
}

// Storage persists audit records.
type Storage interface {
	Store(ctx context.Context, rec Record) error
	Query(ctx context.Context, c Criteria) ([]Record, error)
}

// Recorder writes audit records.
type Recorder interface {
	Record(ctx context.Context, rec Record) (Record, error)
}

// Reader pages through audit records.
type Reader interface {
	Find(ctx context.Context, c Criteria) ([]Record, string, error)
}
