package entitlement

import (
	"context"
	"time"
)

// Store persists entitlements. Every mutating method is a single conditional
// statement against the backing store; none of them reads and then writes
// from the application side.
type Store interface {
	// Ensure returns the user's entitlement, creating it with initialQuota
	// credits and status free when absent.
	Ensure(ctx context.Context, userID string, initialQuota int64, now time.Time) (Entitlement, error)

	// DemoteExpired moves a lapsed premium user back to free, clearing the
	// expiry. It returns the current row whether or not it changed.
	DemoteExpired(ctx context.Context, userID string, now time.Time) (Entitlement, error)

	// ResetFreeTier sets the balance to rule.Quota when rule.Applies still
	// holds for the stored row. It returns the current row either way.
	ResetFreeTier(ctx context.Context, userID string, rule ResetRule, now time.Time) (Entitlement, error)

	// Consume decrements the balance by one if it is positive and returns
	// the remaining balance, or ErrInsufficientCredits.
	Consume(ctx context.Context, userID string) (int64, error)

	// Grant adds credits to the balance.
	Grant(ctx context.Context, userID string, credits int64) (Entitlement, error)

	// MarkPending moves a free user to pending; other statuses are left as is.
	MarkPending(ctx context.Context, userID string) (Entitlement, error)
}
