package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/pg"
)

const auditColumns = `id::text, action, invoice_id, payment_id, user_id, kind, amount, currency, credits, provider_status, created_at`

func insertAudit(ctx context.Context, q querier, rec audit.Record) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payment_audit (id, action, invoice_id, payment_id, user_id, kind, amount, currency,
			credits, provider_status, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, string(rec.Action), rec.InvoiceID, rec.PaymentID, rec.UserID, rec.Kind, rec.Amount,
		rec.Currency, rec.Credits, rec.ProviderStatus, rec.CreatedAt.UTC())
	if pg.IsDuplicateKeyError(err) {
		return audit.ErrDuplicateRecord
	}
	return err
}

func (s *Store) Store(ctx context.Context, rec audit.Record) error {
	return insertAudit(ctx, s.pool, rec)
}

func (s *Store) Query(ctx context.Context, c audit.Criteria) ([]audit.Record, error) {
	sql, args := auditQuery(c)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var r audit.Record
		var action string
		if err := rows.Scan(&r.ID, &action, &r.InvoiceID, &r.PaymentID, &r.UserID, &r.Kind, &r.Amount,
			&r.Currency, &r.Credits, &r.ProviderStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = audit.Action(action)
		out = append(out, r)
	}
	return out, rows.Err()
}

// auditQuery builds the filtered, keyset-paginated listing.
func auditQuery(c audit.Criteria) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if c.UserID != "" {
		where = append(where, "user_id = "+arg(c.UserID))
	}
	if c.InvoiceID != "" {
		where = append(where, "invoice_id = "+arg(c.InvoiceID))
	}
	if c.Action != "" {
		where = append(where, "action = "+arg(string(c.Action)))
	}
	if c.Cursor != "" {
		where = append(where,
			"(created_at, id) < (SELECT created_at, id FROM payment_audit WHERE id::text = "+arg(c.Cursor)+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM payment_audit")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if c.Limit > 0 {
		b.WriteString(" LIMIT " + arg(c.Limit))
	}
	return b.String(), args
}
