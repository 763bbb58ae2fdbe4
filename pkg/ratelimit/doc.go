// Package ratelimit throttles expensive authenticated endpoints per caller.
//
// Limiter counts requests in fixed windows. Counters live in a Store:
// MemoryStore for a single replica and RedisStore when several replicas
// share one budget. Middleware applies a Limiter to HTTP handlers and fails
// open when the store is unreachable, so a cache outage never blocks paid
// queries.
package ratelimit
