package entitlement

import (
	"fmt"
	"time"
)

// Policy holds the free tier and subscription constants.
type Policy struct {
	InitialQuota  int64         `env:"ENTITLEMENT_INITIAL_QUOTA" envDefault:"5"`    // credits granted when the entitlement row is created
	FreeQuota     int64         `env:"ENTITLEMENT_FREE_QUOTA" envDefault:"5"`       // balance after a free-tier reset
	FreeCap       int64         `env:"ENTITLEMENT_FREE_CAP" envDefault:"5"`         // balances above this are purchased credits and never reset
	ResetCooldown time.Duration `env:"ENTITLEMENT_RESET_COOLDOWN" envDefault:"24h"` // minimum time between free-tier resets
	PremiumDays   int           `env:"ENTITLEMENT_PREMIUM_DAYS" envDefault:"30"`    // subscription period in calendar days
	PremiumBonus  int64         `env:"ENTITLEMENT_PREMIUM_BONUS" envDefault:"250"`  // credits added on every subscription activation
}

// DefaultPolicy mirrors the env defaults.
func DefaultPolicy() Policy {
	return Policy{
		InitialQuota:  5,
		FreeQuota:     5,
		FreeCap:       5,
		ResetCooldown: 24 * time.Hour,
		PremiumDays:   30,
		PremiumBonus:  250,
	}
}

// Validate rejects inconsistent constants.
func (p Policy) Validate() error {
	switch {
	case p.InitialQuota < 0, p.FreeQuota < 0, p.PremiumBonus < 0:
		return fmt.Errorf("%w: quotas and bonus must not be negative", ErrInvalidPolicy)
	case p.FreeCap < p.FreeQuota:
		return fmt.Errorf("%w: free cap %d is below free quota %d", ErrInvalidPolicy, p.FreeCap, p.FreeQuota)
	case p.ResetCooldown <= 0:
		return fmt.Errorf("%w: reset cooldown must be positive", ErrInvalidPolicy)
	case p.PremiumDays <= 0:
		return fmt.Errorf("%w: premium period must be positive", ErrInvalidPolicy)
	}
	return nil
}

// ResetRule is the conditional part of a free-tier reset, handed to stores
// so they can re-check it atomically.
type ResetRule struct {
	Quota    int64
	Cap      int64
	Cooldown time.Duration
}

func (p Policy) ResetRule() ResetRule {
	return ResetRule{Quota: p.FreeQuota, Cap: p.FreeCap, Cooldown: p.ResetCooldown}
}

// Applies reports whether e qualifies for a free-tier reset at now: the user
// is not premium, holds no purchased credits above the cap, and the cooldown
// since the last reset has elapsed (or there was none). A zero balance does
// not shorten the cooldown.
func (r ResetRule) Applies(e Entitlement, now time.Time) bool {
	if e.Status == StatusPremium || e.CreditBalance > r.Cap {
		return false
	}
	return e.FreeTierResetAt == nil || now.Sub(*e.FreeTierResetAt) >= r.Cooldown
}

// NeedsFreeReset reports whether reading e at now must refresh the free tier.
func (p Policy) NeedsFreeReset(e Entitlement, now time.Time) bool {
	return p.ResetRule().Applies(e, now)
}

// PremiumLapsed reports whether e is marked premium but expired at now.
func (p Policy) PremiumLapsed(e Entitlement, now time.Time) bool {
	return e.Status == StatusPremium && !e.IsPremiumAt(now)
}

// PremiumExpiry is the expiry of a subscription activated at now, using
// calendar-day arithmetic.
func (p Policy) PremiumExpiry(now time.Time) time.Time {
	return now.AddDate(0, 0, p.PremiumDays)
}
