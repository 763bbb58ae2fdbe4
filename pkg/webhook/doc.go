// Package webhook authenticates inbound payment provider callbacks.
//
// Providers such as NowPayments sign the callback body with HMAC-SHA512, but
// over a canonical serialization (RFC 8785: keys sorted by UTF-16 code
// units, compact, ECMAScript number formatting) rather than the raw bytes on
// the wire. Canonicalize rebuilds that form; Sign and
// VerifySignature operate on it.
//
// Verifier bundles the secret with an explicit insecure mode for local
// development:
//
//	v, err := webhook.NewVerifier(os.Getenv("NOWPAYMENTS_IPN_SECRET"))
//	if err != nil {
//	    return err
//	}
//	if err := v.Verify(body, r.Header.Get("x-nowpayments-sig")); err != nil {
//	    // respond 401, do not touch any store
//	}
package webhook
