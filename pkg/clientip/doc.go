// Package clientip resolves the caller address of an HTTP request and
// restricts endpoints to known networks.
//
// The webhook endpoint uses it to accept payment callbacks only from the
// provider's published addresses when an allowlist is configured. Forwarding
// headers are honoured only when the service runs behind a trusted proxy.
package clientip
