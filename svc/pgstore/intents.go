package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/pg"
)

const (
	intentColumns = `invoice_id, user_id, order_id, kind, credited_quantity, amount, currency, invoice_url,
		status, provider_status, payment_id, created_at, updated_at, resolved_at`

	intentsPkey          = "payment_intents_pkey"
	intentsOnePendingIdx = "payment_intents_one_pending_idx"
)

func scanIntent(row pgx.Row) (billing.Intent, error) {
	var in billing.Intent
	var kind, status string
	err := row.Scan(&in.InvoiceID, &in.UserID, &in.OrderID, &kind, &in.CreditedQuantity, &in.Amount,
		&in.Currency, &in.InvoiceURL, &status, &in.ProviderStatus, &in.PaymentID,
		&in.CreatedAt, &in.UpdatedAt, &in.ResolvedAt)
	if pg.IsNotFoundError(err) {
		return billing.Intent{}, billing.ErrIntentNotFound
	}
	if err != nil {
		return billing.Intent{}, err
	}
	in.Kind, in.Status = billing.Kind(kind), billing.IntentStatus(status)
	return in, nil
}

func (s *Store) CreateIntent(ctx context.Context, in billing.Intent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_intents (invoice_id, user_id, order_id, kind, credited_quantity, amount, currency,
			invoice_url, status, provider_status, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		in.InvoiceID, in.UserID, in.OrderID, string(in.Kind), in.CreditedQuantity, in.Amount, in.Currency,
		in.InvoiceURL, string(in.Status), in.ProviderStatus, in.PaymentID, in.CreatedAt.UTC(), in.UpdatedAt.UTC())
	if pg.IsDuplicateKeyError(err) {
		switch pg.ConstraintName(err) {
		case intentsOnePendingIdx:
			return billing.ErrPendingIntentExists
		case intentsPkey:
			return billing.ErrDuplicateInvoice
		}
	}
	return err
}

func (s *Store) FindIntent(ctx context.Context, invoiceID string) (billing.Intent, error) {
	return scanIntent(s.pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE invoice_id = $1`, invoiceID))
}

func (s *Store) FindPendingIntent(ctx context.Context, userID string, kind billing.Kind) (billing.Intent, error) {
	return scanIntent(s.pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE user_id = $1 AND kind = $2 AND status = 'pending'`,
		userID, string(kind)))
}

func (s *Store) ListIntents(ctx context.Context, userID string, limit int) ([]billing.Intent, error) {
	return s.queryIntents(ctx, `
		SELECT `+intentColumns+` FROM payment_intents
		WHERE user_id = $1
		ORDER BY created_at DESC, invoice_id DESC
		LIMIT $2`, userID, limit)
}

func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]billing.Intent, error) {
	return s.queryIntents(ctx, `
		SELECT `+intentColumns+` FROM payment_intents
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, invoice_id
		LIMIT $2`, cutoff, limit)
}

func (s *Store) queryIntents(ctx context.Context, sql string, args ...any) ([]billing.Intent, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) UpdateIntentStatus(ctx context.Context, u billing.StatusUpdate) (billing.Intent, error) {
	if !billing.IntentTransitions.Can(u.From, u.To) {
		return billing.Intent{}, billing.ErrAlreadyResolved
	}

	var updated billing.Intent
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		in, err := scanIntent(tx.QueryRow(ctx, `
			UPDATE payment_intents
			SET status = $3,
			    payment_id = COALESCE(NULLIF($4, ''), payment_id),
			    provider_status = COALESCE(NULLIF($5, ''), provider_status),
			    updated_at = $6,
			    resolved_at = $6
			WHERE invoice_id = $1 AND status = $2
			RETURNING `+intentColumns,
			u.InvoiceID, string(u.From), string(u.To), u.PaymentID, u.ProviderStatus, u.At.UTC()))
		if errors.Is(err, billing.ErrIntentNotFound) {
			return s.missingOrResolved(ctx, tx, u.InvoiceID)
		}
		if err != nil {
			return err
		}
		updated = in

		if u.RevertPending {
			_, err = tx.Exec(ctx, `
				UPDATE user_entitlements
				SET subscription_status = 'free', updated_at = $2
				WHERE user_id = $1
				  AND subscription_status = 'pending'
				  AND NOT EXISTS (
				      SELECT 1 FROM payment_intents
				      WHERE user_id = $1 AND kind = 'subscription' AND status = 'pending'
				  )`,
				in.UserID, u.At.UTC())
		}
		return err
	})
	if err != nil {
		return billing.Intent{}, err
	}
	return updated, nil
}

// missingOrResolved explains why a pending-only update touched no row.
func (s *Store) missingOrResolved(ctx context.Context, q querier, invoiceID string) error {
	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_intents WHERE invoice_id = $1)`, invoiceID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return billing.ErrIntentNotFound
	}
	return billing.ErrAlreadyResolved
}

func (s *Store) AnnotateIntent(ctx context.Context, invoiceID, providerStatus, paymentID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_intents
		SET provider_status = $2, payment_id = COALESCE(NULLIF($3, ''), payment_id), updated_at = $4
		WHERE invoice_id = $1 AND status = 'pending'`,
		invoiceID, providerStatus, paymentID, at.UTC())
	return err
}

// Settle moves the intent to finished, applies the ledger delta and appends
// the audit row in one transaction.
func (s *Store) Settle(ctx context.Context, st billing.Settlement) error {
	rec := audit.Stamp(st.Audit, st.At)
	if err := rec.Validate(); err != nil {
		return err
	}
	at := st.At.UTC()

	var premiumUntil *time.Time
	if st.PremiumUntil != nil {
		t := st.PremiumUntil.UTC()
		premiumUntil = &t
	}

	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payment_intents
			SET status = 'finished', payment_id = $2, provider_status = $3, updated_at = $4, resolved_at = $4
			WHERE invoice_id = $1 AND status = 'pending'`,
			st.InvoiceID, st.PaymentID, st.ProviderStatus, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrResolved(ctx, tx, st.InvoiceID)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_entitlements (user_id, credit_balance, subscription_status, subscription_expiry,
				free_tier_reset_at, created_at, updated_at)
			VALUES ($1, $2::bigint + $3::bigint,
				CASE WHEN $4::timestamptz IS NULL THEN 'free' ELSE 'premium' END,
				$4, $5, $5, $5)
			ON CONFLICT (user_id) DO UPDATE SET
				credit_balance = user_entitlements.credit_balance + $3::bigint,
				subscription_status = CASE WHEN $4::timestamptz IS NULL
					THEN user_entitlements.subscription_status ELSE 'premium' END,
				subscription_expiry = COALESCE($4, user_entitlements.subscription_expiry),
				updated_at = $5`,
			st.UserID, st.InitialQuota, st.Credits, premiumUntil, at); err != nil {
			return fmt.Errorf("apply ledger delta: %w", err)
		}

		if err := insertAudit(ctx, tx, rec); err != nil {
			if errors.Is(err, audit.ErrDuplicateRecord) {
				return billing.ErrAlreadyResolved
			}
			return err
		}
		return nil
	})
}
