package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
)

func (s *Store) CreateIntent(ctx context.Context, in billing.Intent) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.intents[in.InvoiceID]; ok {
		return billing.ErrDuplicateInvoice
	}
	if _, ok := s.pendingIntent(in.UserID, in.Kind, ""); ok && in.Status == billing.IntentPending {
		return billing.ErrPendingIntentExists
	}
	s.intents[in.InvoiceID] = in
	return nil
}

func (s *Store) FindIntent(ctx context.Context, invoiceID string) (billing.Intent, error) {
	if err := s.lock(ctx); err != nil {
		return billing.Intent{}, err
	}
	defer s.mu.Unlock()

	in, ok := s.intents[invoiceID]
	if !ok {
		return billing.Intent{}, billing.ErrIntentNotFound
	}
	return in, nil
}

func (s *Store) FindPendingIntent(ctx context.Context, userID string, kind billing.Kind) (billing.Intent, error) {
	if err := s.lock(ctx); err != nil {
		return billing.Intent{}, err
	}
	defer s.mu.Unlock()

	in, ok := s.pendingIntent(userID, kind, "")
	if !ok {
		return billing.Intent{}, billing.ErrIntentNotFound
	}
	return in, nil
}

func (s *Store) pendingIntent(userID string, kind billing.Kind, except string) (billing.Intent, bool) {
	for id, in := range s.intents {
		if id != except && in.UserID == userID && in.Kind == kind && in.Status == billing.IntentPending {
			return in, true
		}
	}
	return billing.Intent{}, false
}

func (s *Store) UpdateIntentStatus(ctx context.Context, u billing.StatusUpdate) (billing.Intent, error) {
	if err := s.lock(ctx); err != nil {
		return billing.Intent{}, err
	}
	defer s.mu.Unlock()

	in, ok := s.intents[u.InvoiceID]
	if !ok {
		return billing.Intent{}, billing.ErrIntentNotFound
	}
	if in.Status != u.From || !billing.IntentTransitions.Can(in.Status, u.To) {
		return billing.Intent{}, billing.ErrAlreadyResolved
	}

	in.Status = u.To
	in.UpdatedAt = u.At.UTC()
	in.ResolvedAt = utc(u.At)
	if u.PaymentID != "" {
		in.PaymentID = u.PaymentID
	}
	if u.ProviderStatus != "" {
		in.ProviderStatus = u.ProviderStatus
	}
	s.intents[in.InvoiceID] = in

	if u.RevertPending {
		s.revertPending(in.UserID, in.InvoiceID, u.At)
	}
	return in, nil
}

func (s *Store) revertPending(userID, resolvedInvoice string, at time.Time) {
	e, ok := s.ents[userID]
	if !ok || e.Status != entitlement.StatusPending {
		return
	}
	if _, waiting := s.pendingIntent(userID, billing.KindSubscription, resolvedInvoice); waiting {
		return
	}
	e.Status = entitlement.StatusFree
	e.UpdatedAt = at.UTC()
	s.ents[userID] = e
}

func (s *Store) AnnotateIntent(ctx context.Context, invoiceID, providerStatus, paymentID string, at time.Time) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	in, ok := s.intents[invoiceID]
	if !ok || in.Status != billing.IntentPending {
		return nil
	}
	in.ProviderStatus = providerStatus
	if paymentID != "" {
		in.PaymentID = paymentID
	}
	in.UpdatedAt = at.UTC()
	s.intents[invoiceID] = in
	return nil
}

func (s *Store) ListIntents(ctx context.Context, userID string, limit int) ([]billing.Intent, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []billing.Intent
	for _, in := range s.intents {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	slices.SortFunc(out, func(a, b billing.Intent) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.InvoiceID, a.InvoiceID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]billing.Intent, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []billing.Intent
	for _, in := range s.intents {
		if in.Status == billing.IntentPending && in.CreatedAt.Before(cutoff) {
			out = append(out, in)
		}
	}
	slices.SortFunc(out, func(a, b billing.Intent) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.InvoiceID, b.InvoiceID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Settle applies the intent transition, the ledger delta and the audit row
// under one lock, or none of them.
func (s *Store) Settle(ctx context.Context, st billing.Settlement) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	in, ok := s.intents[st.InvoiceID]
	if !ok {
		return billing.ErrIntentNotFound
	}
	if in.Status != billing.IntentPending {
		return billing.ErrAlreadyResolved
	}
	if s.hasRecord(st.Audit) {
		return billing.ErrAlreadyResolved
	}
	rec := audit.Stamp(st.Audit, st.At)
	if err := rec.Validate(); err != nil {
		return err
	}

	at := st.At.UTC()
	e, ok := s.ents[st.UserID]
	if !ok {
		e = entitlement.Entitlement{
			UserID:          st.UserID,
			CreditBalance:   st.InitialQuota,
			Status:          entitlement.StatusFree,
			FreeTierResetAt: utc(at),
			CreatedAt:       at,
		}
	}
	e.CreditBalance += st.Credits
	if st.PremiumUntil != nil {
		e.Status = entitlement.StatusPremium
		e.SubscriptionExpiry = utc(*st.PremiumUntil)
	}
	e.UpdatedAt = at

	in.Status = billing.IntentFinished
	in.PaymentID = st.PaymentID
	in.ProviderStatus = st.ProviderStatus
	in.UpdatedAt = at
	in.ResolvedAt = utc(at)

	s.ents[st.UserID] = e
	s.intents[in.InvoiceID] = in
	s.trail = append(s.trail, rec)
	return nil
}
