package identity

import "errors"

var (
	ErrMissingSigningKey = errors.New("identity: missing signing key")
	ErrMissingToken      = errors.New("identity: missing bearer token")
	ErrInvalidToken      = errors.New("identity: invalid token")
	ErrMissingSubject    = errors.New("identity: token has no subject")
	ErrNoIdentity        = errors.New("identity: request is not authenticated")
)
