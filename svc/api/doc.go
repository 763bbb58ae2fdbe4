// Package api exposes the reconciliation engine over HTTP with chi.
//
// Public routes: health probes, Prometheus metrics, the price list and the
// NowPayments IPN webhook. Everything under /api requires a bearer token
// from the identity provider: entitlement status, the gated AI query,
// checkout and payment history.
package api
