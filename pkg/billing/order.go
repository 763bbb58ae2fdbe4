package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// OrderTag marks order ids minted by this service.
	OrderTag = "cli"
	// OrderSeparator joins order id fields and is forbidden inside them.
	OrderSeparator = "_"

	orderFields = 4
)

// Kind is what a payment buys.
type Kind string

const (
	KindSubscription Kind = "subscription"
	KindCredits      Kind = "credits"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSubscription || k == KindCredits
}

// Order is the decoded content of an order id.
type Order struct {
	UserID string
	Kind   Kind
	Nonce  string
}

// NewNonce returns the unix-seconds nonce used for order ids.
func NewNonce(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10)
}

// EncodeOrder builds "cli_<user>_<kind>_<nonce>". Components must be
// non-empty and must not contain the separator.
func EncodeOrder(userID string, kind Kind, nonce string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	for name, v := range map[string]string{"user id": userID, "nonce": nonce} {
		if v == "" {
			return "", fmt.Errorf("%w: empty %s", ErrMalformedOrder, name)
		}
		if strings.Contains(v, OrderSeparator) {
			return "", fmt.Errorf("%w: %s contains %q", ErrMalformedOrder, name, OrderSeparator)
		}
	}
	return strings.Join([]string{OrderTag, userID, string(kind), nonce}, OrderSeparator), nil
}

// DecodeOrder parses an order id that made a round trip through the
// provider. Anything but exactly four non-empty fields with the right tag
// and a known kind fails with ErrMalformedOrder.
func DecodeOrder(orderID string) (Order, error) {
	parts := strings.Split(orderID, OrderSeparator)
	if len(parts) != orderFields {
		return Order{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedOrder, orderFields, len(parts))
	}
	if parts[0] != OrderTag {
		return Order{}, fmt.Errorf("%w: unexpected tag %q", ErrMalformedOrder, parts[0])
	}
	if parts[1] == "" || parts[3] == "" {
		return Order{}, fmt.Errorf("%w: empty field", ErrMalformedOrder)
	}
	kind := Kind(parts[2])
	if !kind.Valid() {
		return Order{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedOrder, parts[2])
	}
	return Order{UserID: parts[1], Kind: kind, Nonce: parts[3]}, nil
}
