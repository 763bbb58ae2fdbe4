// Package metrics defines the Prometheus collectors of the reconciliation
// engine: webhook outcomes and latency, late payments, query gate decisions,
// checkout requests and HTTP latency.
package metrics
