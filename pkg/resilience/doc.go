// Package resilience guards calls to third-party HTTP APIs (payment
// provider, AI completion) with a consecutive-failure circuit breaker.
//
// Retries are driven by github.com/sethvargo/go-retry at the call site; the
// breaker sits inside the retried function and decides per error whether a
// failure counts towards opening the circuit:
//
//	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
//	    err := breaker.Do(func() error { return call(ctx) }, countable)
//	    if transient(err) {
//	        return retry.RetryableError(err)
//	    }
//	    return err
//	})
//
// An open breaker fails fast with ErrCircuitOpen until the recovery window
// has passed, then lets trial calls through in the half-open state.
package resilience
