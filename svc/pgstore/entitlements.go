package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/pg"
)

const entitlementColumns = `user_id, credit_balance, subscription_status, subscription_expiry, free_tier_reset_at, created_at, updated_at`

func scanEntitlement(row pgx.Row) (entitlement.Entitlement, error) {
	var e entitlement.Entitlement
	var status string
	err := row.Scan(&e.UserID, &e.CreditBalance, &status, &e.SubscriptionExpiry, &e.FreeTierResetAt, &e.CreatedAt, &e.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return entitlement.Entitlement{}, entitlement.ErrNotFound
	}
	if err != nil {
		return entitlement.Entitlement{}, err
	}
	e.Status = entitlement.Status(status)
	return e, nil
}

func (s *Store) getEntitlement(ctx context.Context, q querier, userID string) (entitlement.Entitlement, error) {
	return scanEntitlement(q.QueryRow(ctx,
		`SELECT `+entitlementColumns+` FROM user_entitlements WHERE user_id = $1`, userID))
}

// updateOrGet runs a conditional write ... RETURNING and falls back to the
// current row when the write affected nothing.
func (s *Store) updateOrGet(ctx context.Context, userID, sql string, args ...any) (entitlement.Entitlement, error) {
	e, err := scanEntitlement(s.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, entitlement.ErrNotFound) {
		return s.getEntitlement(ctx, s.pool, userID)
	}
	return e, err
}

// Ensure inserts the row when missing. An existing row is read back
// untouched, so no write lock is taken on the hot read path.
func (s *Store) Ensure(ctx context.Context, userID string, initialQuota int64, now time.Time) (entitlement.Entitlement, error) {
	return s.updateOrGet(ctx, userID, `
		INSERT INTO user_entitlements (user_id, credit_balance, subscription_status, free_tier_reset_at, created_at, updated_at)
		VALUES ($1, $2, 'free', $3, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+entitlementColumns,
		userID, initialQuota, now.UTC())
}

func (s *Store) DemoteExpired(ctx context.Context, userID string, now time.Time) (entitlement.Entitlement, error) {
	return s.updateOrGet(ctx, userID, `
		UPDATE user_entitlements
		SET subscription_status = 'free', subscription_expiry = NULL, updated_at = $2
		WHERE user_id = $1 AND subscription_status = 'premium' AND subscription_expiry <= $2
		RETURNING `+entitlementColumns,
		userID, now.UTC())
}

func (s *Store) ResetFreeTier(ctx context.Context, userID string, rule entitlement.ResetRule, now time.Time) (entitlement.Entitlement, error) {
	return s.updateOrGet(ctx, userID, `
		UPDATE user_entitlements
		SET credit_balance = $2, free_tier_reset_at = $4, updated_at = $4
		WHERE user_id = $1
		  AND subscription_status <> 'premium'
		  AND credit_balance <= $3
		  AND (free_tier_reset_at IS NULL OR free_tier_reset_at <= $5)
		RETURNING `+entitlementColumns,
		userID, rule.Quota, rule.Cap, now.UTC(), now.Add(-rule.Cooldown).UTC())
}

func (s *Store) Consume(ctx context.Context, userID string) (int64, error) {
	var remaining int64
	err := s.pool.QueryRow(ctx, `
		UPDATE user_entitlements
		SET credit_balance = credit_balance - 1, updated_at = now()
		WHERE user_id = $1 AND credit_balance > 0
		RETURNING credit_balance`,
		userID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !pg.IsNotFoundError(err) {
		return 0, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_entitlements WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, entitlement.ErrNotFound
	}
	return 0, entitlement.ErrInsufficientCredits
}

func (s *Store) Grant(ctx context.Context, userID string, credits int64) (entitlement.Entitlement, error) {
	return scanEntitlement(s.pool.QueryRow(ctx, `
		UPDATE user_entitlements
		SET credit_balance = credit_balance + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING `+entitlementColumns,
		userID, credits))
}

func (s *Store) MarkPending(ctx context.Context, userID string) (entitlement.Entitlement, error) {
	return s.updateOrGet(ctx, userID, `
		UPDATE user_entitlements
		SET subscription_status = 'pending', updated_at = now()
		WHERE user_id = $1 AND subscription_status = 'free'
		RETURNING `+entitlementColumns,
		userID)
}
