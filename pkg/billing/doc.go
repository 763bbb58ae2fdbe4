// Package billing covers the payment side of the entitlement ledger: order
// ids, the credit catalog, payment intents, the NowPayments invoice client
// and the reconciliation of provider callbacks into ledger mutations.
//
// # Architecture
//
// The flow is:
//
//	Checkout -> Registry.Create -> InvoiceProvider (NowPayments)
//	provider callback -> Applier.Handle -> Verifier -> Registry -> SettlementStore.Settle
//
//   - Catalog prices the subscription and the credit packs. It is loaded
//     from YAML or falls back to DefaultCatalog.
//   - Registry owns payment intents. It reuses a fresh pending intent of the
//     same kind, expires stale ones and writes nothing when the provider
//     fails or times out.
//   - NowPayments creates invoices behind a resilience.Breaker and reports
//     ErrProviderUnavailable or ErrProviderRejected.
//   - Applier verifies, decodes and classifies a callback, then settles it.
//     Every recognised callback yields an Outcome; only signature, payload
//     and store faults are errors.
//   - Sweeper expires pending intents nobody paid, so an abandoned
//     subscription checkout stops reporting pending.
//
// Settle is the idempotency boundary. It moves the intent from pending to
// finished, credits the ledger and appends the audit row in one unit of
// work, and reports ErrAlreadyResolved without side effects when the intent
// has already left pending. Duplicate deliveries therefore never credit twice
// regardless of the DeliveryGuard in use.
//
// # Order ids
//
// Order ids have the form
//
//	cli_<user id>_<kind>_<unix seconds>
//
// and decoding fails closed: anything but four fields, the cli tag and a
// known kind is ErrMalformedOrder. User ids containing the separator cannot
// be encoded and are refused at checkout with the same error.
//
// # Usage
//
//	registry := billing.NewRegistry(store, provider,
//		billing.WithPendingTTL(30*time.Minute),
//		billing.WithRegistryLogger(log))
//
//	checkout := billing.NewCheckout(registry, billing.DefaultCatalog(), ents, log)
//	in, reused, err := checkout.BuyCredits(ctx, userID, 20, 0)
//	if err != nil {
//		return err
//	}
//	redirect(in.InvoiceURL, reused)
//
//	applier := billing.NewApplier(verifier, registry, store, audit.NewRecorder(store), ents.Policy(),
//		billing.WithDeliveryGuard(guard))
//	out, err := applier.Handle(ctx, body, r.Header.Get("x-nowpayments-sig"))
//	switch {
//	case errors.Is(err, billing.ErrInvalidSignature):
//		// 401, nothing was applied
//	case errors.Is(err, billing.ErrStoreUnavailable):
//		// 5xx, the provider retries later
//	case err == nil:
//		// 200 with out.Status and out.Reason
//	}
//
// Stores implement Store (IntentStore plus SettlementStore). The in-memory
// and PostgreSQL stores under svc/ are interchangeable.
package billing
