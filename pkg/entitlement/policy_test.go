package entitlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/creditgate/pkg/entitlement"
)

func TestResetRuleApplies(t *testing.T) {
	t.Parallel()

	rule := entitlement.DefaultPolicy().ResetRule()

	tests := []struct {
		name string
		e    entitlement.Entitlement
		want bool
	}{
		{"never reset", entitlement.Entitlement{CreditBalance: 3, Status: entitlement.StatusFree}, true},
		{"cooldown elapsed", entitlement.Entitlement{CreditBalance: 0, Status: entitlement.StatusFree, FreeTierResetAt: ptr(now.Add(-24 * time.Hour))}, true},
		{"cooldown running with zero balance", entitlement.Entitlement{CreditBalance: 0, Status: entitlement.StatusFree, FreeTierResetAt: ptr(now.Add(-23 * time.Hour))}, false},
		{"pending user is eligible", entitlement.Entitlement{CreditBalance: 1, Status: entitlement.StatusPending}, true},
		{"purchased credits", entitlement.Entitlement{CreditBalance: 6, Status: entitlement.StatusFree}, false},
		{"premium user", entitlement.Entitlement{CreditBalance: 0, Status: entitlement.StatusPremium, SubscriptionExpiry: ptr(now.Add(time.Hour))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rule.Applies(tt.e, now))
		})
	}
}

func TestPremiumHelpers(t *testing.T) {
	t.Parallel()

	p := entitlement.DefaultPolicy()

	// Calendar-day arithmetic keeps the wall clock across DST changes.
	loc, err := time.LoadLocation("Europe/Berlin")
	if err == nil {
		start := time.Date(2026, 3, 20, 10, 0, 0, 0, loc)
		assert.Equal(t, time.Date(2026, 4, 19, 10, 0, 0, 0, loc), p.PremiumExpiry(start))
	}
	assert.Equal(t, now.AddDate(0, 0, 30), p.PremiumExpiry(now))

	active := entitlement.Entitlement{Status: entitlement.StatusPremium, SubscriptionExpiry: ptr(now.Add(36 * time.Hour))}
	assert.True(t, active.IsPremiumAt(now))
	assert.Equal(t, 2, active.DaysLeftAt(now))
	assert.False(t, p.PremiumLapsed(active, now))

	lapsed := entitlement.Entitlement{Status: entitlement.StatusPremium, SubscriptionExpiry: ptr(now)}
	assert.False(t, lapsed.IsPremiumAt(now))
	assert.True(t, p.PremiumLapsed(lapsed, now))
	assert.Zero(t, lapsed.DaysLeftAt(now))
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, entitlement.DefaultPolicy().Validate())

	mutate := []func(*entitlement.Policy){
		func(p *entitlement.Policy) { p.FreeQuota = -1 },
		func(p *entitlement.Policy) { p.FreeCap = 2 },
		func(p *entitlement.Policy) { p.ResetCooldown = 0 },
		func(p *entitlement.Policy) { p.PremiumDays = 0 },
	}
	for _, m := range mutate {
		p := entitlement.DefaultPolicy()
		m(&p)
		assert.ErrorIs(t, p.Validate(), entitlement.ErrInvalidPolicy)
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	orig := entitlement.Entitlement{SubscriptionExpiry: ptr(now)}
	c := orig.Clone()
	*c.SubscriptionExpiry = now.Add(time.Hour)
	assert.True(t, orig.SubscriptionExpiry.Equal(now))
}
