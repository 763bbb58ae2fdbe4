package pgstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/svc/pgstore"
)

func TestAuditQuery(t *testing.T) {
	t.Parallel()

	const cols = "SELECT id::text, action, invoice_id, payment_id, user_id, kind, amount, currency, credits, provider_status, created_at FROM payment_audit"

	tests := []struct {
		name     string
		criteria audit.Criteria
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filters",
			criteria: audit.Criteria{},
			wantSQL:  cols + " ORDER BY created_at DESC, id DESC",
		},
		{
			name:     "user page",
			criteria: audit.Criteria{UserID: "u1", Limit: 50},
			wantSQL:  cols + " WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
			wantArgs: []any{"u1", 50},
		},
		{
			name:     "all filters with cursor",
			criteria: audit.Criteria{UserID: "u1", InvoiceID: "inv-1", Action: audit.ActionSettled, Cursor: "c", Limit: 10},
			wantSQL: cols + " WHERE user_id = $1 AND invoice_id = $2 AND action = $3" +
				" AND (created_at, id) < (SELECT created_at, id FROM payment_audit WHERE id::text = $4)" +
				" ORDER BY created_at DESC, id DESC LIMIT $5",
			wantArgs: []any{"u1", "inv-1", "payment.settled", "c", 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sql, args := pgstore.AuditQuery(tt.criteria)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
