package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA512 of the canonical form of payload.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac(secret, canonical)), nil
}

// VerifySignature checks signature against the canonical form of payload.
// The hex signature is compared case-insensitively in constant time.
func VerifySignature(secret string, payload []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}

	claimed, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrInvalidSignature)
	}

	canonical, err := Canonicalize(payload)
	if err != nil {
		// An undecodable body can never carry a valid signature.
		return errors.Join(ErrInvalidSignature, err)
	}

	if !hmac.Equal(mac(secret, canonical), claimed) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func mac(secret string, data []byte) []byte {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)
}

// Verifier authenticates inbound provider callbacks.
type Verifier struct {
	secret   string
	insecure bool
	log      *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithInsecureSkip allows an empty secret, in which case every payload is
// accepted and a warning is logged per call. Never enable in production.
func WithInsecureSkip() VerifierOption {
	return func(v *Verifier) { v.insecure = true }
}

// WithLogger sets the logger used for insecure-mode warnings.
func WithLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

// NewVerifier builds a verifier for secret. An empty secret is rejected with
// ErrInvalidConfiguration unless WithInsecureSkip is given.
func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{secret: secret, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(v)
	}
	if secret == "" && !v.insecure {
		return nil, fmt.Errorf("%w: secret is required unless insecure mode is enabled", ErrInvalidConfiguration)
	}
	if secret != "" {
		v.insecure = false
	}
	return v, nil
}

// Insecure reports whether signature checks are skipped.
func (v *Verifier) Insecure() bool {
	return v.insecure
}

// Verify returns nil when signature authenticates payload. Failures wrap
// ErrInvalidSignature.
func (v *Verifier) Verify(payload []byte, signature string) error {
	if v.insecure {
		v.log.Warn("webhook signature verification skipped: no secret configured",
			slog.String("component", "webhook"))
		return nil
	}
	return VerifySignature(v.secret, payload, signature)
}
