package memstore

import (
	"context"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/entitlement"
)

func (s *Store) Ensure(ctx context.Context, userID string, initialQuota int64, now time.Time) (entitlement.Entitlement, error) {
	if err := s.lock(ctx); err != nil {
		return entitlement.Entitlement{}, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		e = entitlement.Entitlement{
			UserID:          userID,
			CreditBalance:   initialQuota,
			Status:          entitlement.StatusFree,
			FreeTierResetAt: utc(now),
			CreatedAt:       now.UTC(),
			UpdatedAt:       now.UTC(),
		}
		s.ents[userID] = e
	}
	return e.Clone(), nil
}

func (s *Store) DemoteExpired(ctx context.Context, userID string, now time.Time) (entitlement.Entitlement, error) {
	if err := s.lock(ctx); err != nil {
		return entitlement.Entitlement{}, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		return entitlement.Entitlement{}, entitlement.ErrNotFound
	}
	if e.Status == entitlement.StatusPremium && !e.IsPremiumAt(now) {
		e.Status = entitlement.StatusFree
		e.SubscriptionExpiry = nil
		e.UpdatedAt = now.UTC()
		s.ents[userID] = e
	}
	return e.Clone(), nil
}

func (s *Store) ResetFreeTier(ctx context.Context, userID string, rule entitlement.ResetRule, now time.Time) (entitlement.Entitlement, error) {
	if err := s.lock(ctx); err != nil {
		return entitlement.Entitlement{}, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		return entitlement.Entitlement{}, entitlement.ErrNotFound
	}
	if rule.Applies(e, now) {
		e.CreditBalance = rule.Quota
		e.FreeTierResetAt = utc(now)
		e.UpdatedAt = now.UTC()
		s.ents[userID] = e
	}
	return e.Clone(), nil
}

func (s *Store) Consume(ctx context.Context, userID string) (int64, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		return 0, entitlement.ErrNotFound
	}
	if e.CreditBalance <= 0 {
		return 0, entitlement.ErrInsufficientCredits
	}
	e.CreditBalance--
	s.ents[userID] = e
	return e.CreditBalance, nil
}

func (s *Store) Grant(ctx context.Context, userID string, credits int64) (entitlement.Entitlement, error) {
	if err := s.lock(ctx); err != nil {
		return entitlement.Entitlement{}, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		return entitlement.Entitlement{}, entitlement.ErrNotFound
	}
	e.CreditBalance += credits
	s.ents[userID] = e
	return e.Clone(), nil
}

func (s *Store) MarkPending(ctx context.Context, userID string) (entitlement.Entitlement, error) {
	if err := s.lock(ctx); err != nil {
		return entitlement.Entitlement{}, err
	}
	defer s.mu.Unlock()

	e, ok := s.ents[userID]
	if !ok {
		return entitlement.Entitlement{}, entitlement.ErrNotFound
	}
	if e.Status == entitlement.StatusFree {
		e.Status = entitlement.StatusPending
		s.ents[userID] = e
	}
	return e.Clone(), nil
}
