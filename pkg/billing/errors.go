package billing

import "errors"

var (
	ErrMalformedOrder      = errors.New("malformed order id")
	ErrInvalidKind         = errors.New("invalid purchase kind")
	ErrInvalidIntent       = errors.New("invalid payment intent")
	ErrIntentNotFound      = errors.New("payment intent not found")
	ErrDuplicateInvoice    = errors.New("payment intent for this invoice already exists")
	ErrPendingIntentExists = errors.New("a pending payment intent already exists for this user and kind")
	ErrAlreadyResolved     = errors.New("payment intent already resolved")
	ErrUnknownPack         = errors.New("no credit pack matches the requested amount")
	ErrCreditsMismatch     = errors.New("requested credits do not match the credit pack")
	ErrInvalidCatalog      = errors.New("invalid catalog")

	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected the request")
	ErrProviderNotConfig   = errors.New("payment provider is not configured")

	ErrInvalidSignature   = errors.New("invalid callback signature")
	ErrInvalidPayload     = errors.New("invalid callback payload")
	ErrDeliveryInProgress = errors.New("callback delivery is already being processed")
	ErrStoreUnavailable   = errors.New("payment store unavailable")
)
