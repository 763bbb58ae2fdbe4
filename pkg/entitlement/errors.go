package entitlement

import "errors"

var (
	ErrNotFound            = errors.New("entitlement not found")
	ErrInsufficientCredits = errors.New("no credits left, upgrade or purchase more")
	ErrStoreUnavailable    = errors.New("entitlement store unavailable")
	ErrInvalidPolicy       = errors.New("invalid entitlement policy")
	ErrEmptyUserID         = errors.New("user id is required")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// storeError keeps domain sentinels intact and classifies everything else
// as a store fault.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}
