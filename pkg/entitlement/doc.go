// Package entitlement implements the per-user credit ledger: the lazy
// free-tier refresher evaluated on every read and the query gate that debits
// one credit per AI query.
//
// # Architecture
//
// The ledger itself lives behind the Store port. Each Store method is one
// atomic conditional statement, so concurrent queries of the same user can
// never drive the balance below zero and concurrent reads can never apply a
// free-tier reset twice.
//
// Reads go through Service.Get:
//
//  1. the row is created with Policy.InitialQuota on first access;
//  2. a premium subscription whose expiry has passed is demoted to free;
//  3. a non-premium balance at or below Policy.FreeCap is reset to
//     Policy.FreeQuota once Policy.ResetCooldown has elapsed since the last
//     reset.
//
// The reset is read-triggered: a user who never comes back never receives
// one, and that costs nothing.
//
// Concurrent Get calls for one user share a single maintenance pass. The
// pass runs detached from the caller that started it and is bounded by the
// refresh timeout (DefaultRefreshTimeout, see WithRefreshTimeout), so one
// cancelled request does not fail the others waiting on the same user.
// Callers always receive their own copy of the entitlement.
//
// # Usage
//
//	svc, err := entitlement.NewService(store,
//		entitlement.WithPolicy(entitlement.DefaultPolicy()),
//		entitlement.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	dec, err := svc.TryConsume(ctx, userID)
//	switch {
//	case err != nil:
//		return err // ErrStoreUnavailable
//	case !dec.Allowed:
//		return deny(dec.Reason) // ReasonNoCredits
//	}
//
//	if _, err := ask(ctx, query); err != nil && !dec.Premium {
//		_, _ = svc.Refund(ctx, userID, 1)
//	}
//
// # Policy
//
// Policy carries the ledger constants: the initial and free-tier quotas, the
// reset cap and cooldown, the subscription length in days and the bonus
// credited on activation. It is read from ENTITLEMENT_* variables and
// DefaultPolicy mirrors their defaults. Validate rejects negative quotas, a
// cap below the free quota and non-positive periods.
package entitlement
