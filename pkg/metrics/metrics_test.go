package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/metrics"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New("creditgate")

	m.ObserveWebhook("success", "", 10*time.Millisecond)
	m.ObserveWebhook("acknowledged", "already_resolved", time.Millisecond)
	m.ObserveWebhook("acknowledged", "already_resolved", time.Millisecond)
	m.LatePayment()
	m.GateDecision(true, false)
	m.GateDecision(false, false)
	m.InvoiceCreated("credits", true)
	m.ObserveHTTP(http.MethodPost, "/webhook/nowpayments", http.StatusOK, time.Millisecond)

	count, err := testutil.GatherAndCount(m.Registry(), "creditgate_webhook_callbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per outcome/reason pair")

	count, err = testutil.GatherAndCount(m.Registry(), "creditgate_gate_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `creditgate_webhook_callbacks_total{outcome="acknowledged",reason="already_resolved"} 2`)
	assert.Contains(t, string(body), "creditgate_webhook_late_payments_total 1")
	assert.Contains(t, string(body), `creditgate_billing_invoices_total{kind="credits",reused="true"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveWebhook("success", "", time.Second)
		m.LatePayment()
		m.GateDecision(true, true)
		m.InvoiceCreated("subscription", false)
		m.ObserveHTTP("GET", "", 200, time.Second)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
