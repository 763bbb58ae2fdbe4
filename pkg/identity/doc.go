// Package identity adapts the external identity provider to the service.
//
// The provider (for example a Supabase project) issues HS256 bearer tokens
// whose "sub" claim is the user id. Middleware verifies them with
// github.com/golang-jwt/jwt/v5 and exposes the caller through FromContext;
// Issue mints compatible tokens for local development.
package identity
