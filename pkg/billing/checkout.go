package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/logger"
)

// PendingMarker flags a user as awaiting a subscription payment.
type PendingMarker interface {
	MarkSubscriptionPending(ctx context.Context, userID string) (entitlement.Entitlement, error)
}

// Checkout turns catalog purchases into payment intents.
type Checkout struct {
	registry *Registry
	catalog  Catalog
	pending  PendingMarker
	log      *slog.Logger
}

// NewCheckout wires a checkout. pending may be nil.
func NewCheckout(registry *Registry, catalog Catalog, pending PendingMarker, log *slog.Logger) *Checkout {
	if registry == nil {
		panic("billing: Registry is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Checkout{registry: registry, catalog: catalog, pending: pending, log: log}
}

// Catalog returns the price list in use.
func (c *Checkout) Catalog() Catalog { return c.catalog }

// Subscribe opens a subscription invoice and marks a free user pending.
func (c *Checkout) Subscribe(ctx context.Context, userID string) (Intent, bool, error) {
	in, reused, err := c.registry.Create(ctx, CreateRequest{
		UserID:      userID,
		Kind:        KindSubscription,
		Amount:      c.catalog.SubscriptionPrice * MinorUnitsPerMajor,
		Currency:    c.catalog.Currency,
		Description: "Premium subscription",
	})
	if err != nil {
		return Intent{}, false, err
	}

	if c.pending != nil {
		if _, err := c.pending.MarkSubscriptionPending(ctx, userID); err != nil {
			// The invoice is valid either way; the flag is informational.
			c.log.ErrorContext(ctx, "failed to mark subscription pending",
				logger.Component("billing"), logger.UserID(userID),
				logger.InvoiceID(in.InvoiceID), logger.Error(err))
		}
	}
	return in, reused, nil
}

// BuyCredits opens an invoice for the pack priced at price whole units.
// A non-zero credits value must match the pack.
func (c *Checkout) BuyCredits(ctx context.Context, userID string, price, credits int64) (Intent, bool, error) {
	pack, err := c.catalog.PackByPrice(price)
	if err != nil {
		return Intent{}, false, err
	}
	if credits != 0 && credits != pack.Credits {
		return Intent{}, false, fmt.Errorf("%w: pack %d sells %d credits", ErrCreditsMismatch, pack.Price, pack.Credits)
	}

	return c.registry.Create(ctx, CreateRequest{
		UserID:           userID,
		Kind:             KindCredits,
		Amount:           pack.Price * MinorUnitsPerMajor,
		Currency:         c.catalog.Currency,
		CreditedQuantity: pack.Credits,
		Description:      fmt.Sprintf("%d credits", pack.Credits),
	})
}
