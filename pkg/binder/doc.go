// Package binder decodes HTTP request bodies into typed request structs.
//
// JSON enforces the application/json media type, a body size limit, strict
// field matching and a single top-level value. Every failure wraps one of the
// sentinel errors so handlers can map it to 400 or 415 with errors.Is.
package binder
