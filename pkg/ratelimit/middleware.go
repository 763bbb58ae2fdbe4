package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/logger"
)

// KeyFunc extracts the throttling key from a request. An empty key skips
// the limiter.
type KeyFunc func(*http.Request) string

// Middleware enforces limiter per key. Rejected requests are passed to
// onLimited, which must write the response. Store errors are logged and the
// request proceeds.
func Middleware(limiter *Limiter, keyFunc KeyFunc, onLimited http.HandlerFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}
	if onLimited == nil {
		onLimited = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	if log == nil {
		log = logger.Discard()
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					logger.Component("ratelimit"), logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retry := max(int(result.RetryAfter(limiter.now()).Round(time.Second)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				onLimited(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
