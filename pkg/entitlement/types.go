package entitlement

import (
	"math"
	"time"
)

// Status is the subscription position of a user.
type Status string

const (
	StatusFree    Status = "free"
	StatusPending Status = "pending"
	StatusPremium Status = "premium"
)

// Entitlement is the per-user ledger row.
//
// CreditBalance is never negative, and SubscriptionExpiry is set exactly
// when Status is premium.
type Entitlement struct {
	UserID             string     `json:"user_id"`
	CreditBalance      int64      `json:"credit_balance"`
	Status             Status     `json:"subscription_status"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	FreeTierResetAt    *time.Time `json:"free_tier_reset_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsPremiumAt reports whether the subscription is active at now.
func (e Entitlement) IsPremiumAt(now time.Time) bool {
	return e.Status == StatusPremium && e.SubscriptionExpiry != nil && e.SubscriptionExpiry.After(now)
}

// DaysLeftAt returns the whole days of premium remaining at now, rounded up.
func (e Entitlement) DaysLeftAt(now time.Time) int {
	if !e.IsPremiumAt(now) {
		return 0
	}
	return int(math.Ceil(e.SubscriptionExpiry.Sub(now).Hours() / 24))
}

// Clone returns a deep copy, so callers may keep it past concurrent updates.
func (e Entitlement) Clone() Entitlement {
	if e.SubscriptionExpiry != nil {
		t := *e.SubscriptionExpiry
		e.SubscriptionExpiry = &t
	}
	if e.FreeTierResetAt != nil {
		t := *e.FreeTierResetAt
		e.FreeTierResetAt = &t
	}
	return e
}

// DenyReason explains a denied consumption.
type DenyReason string

const ReasonNoCredits DenyReason = "no_credits"

// Decision is the outcome of a query gate check.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Reason    DenyReason `json:"reason,omitempty"`
	Premium   bool       `json:"premium"`
	Remaining int64      `json:"remaining"`
}
