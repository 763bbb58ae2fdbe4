package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook verifier configuration")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
)
