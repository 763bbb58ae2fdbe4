package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/clientip"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/httpserver"
	"github.com/dmitrymomot/creditgate/pkg/identity"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/metrics"
	"github.com/dmitrymomot/creditgate/pkg/ratelimit"
	"github.com/dmitrymomot/creditgate/svc/completion"
)

// Completer answers AI queries.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// Deps are the collaborators behind the routes. Completer may be nil, in
// which case AI queries answer 503. Limiters may be nil to disable
// throttling.
type Deps struct {
	Entitlements    entitlement.Service
	Checkout        *billing.Checkout
	Registry        *billing.Registry
	Applier         *billing.Applier
	Audit           audit.Reader
	Identity        *identity.Service
	Completer       Completer
	Metrics         *metrics.Metrics
	QueryLimiter    *ratelimit.Limiter
	CheckoutLimiter *ratelimit.Limiter
	Checks          []httpserver.Check
	Logger          *slog.Logger
	Clock           func() time.Time
}

type handlers struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config, deps Deps) (http.Handler, error) {
	if deps.Entitlements == nil || deps.Checkout == nil || deps.Registry == nil ||
		deps.Applier == nil || deps.Audit == nil || deps.Identity == nil {
		panic("api: entitlements, checkout, registry, applier, audit and identity are required")
	}
	cfg = cfg.withDefaults()

	allow, err := clientip.ParseAllowlist(cfg.WebhookAllowlist)
	if err != nil {
		return nil, err
	}

	h := &handlers{cfg: cfg, deps: deps, log: deps.Logger, now: deps.Clock}
	if h.log == nil {
		h.log = logger.Discard()
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(h.observe)

	r.Get("/", h.root)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(h.log, cfg.ReadyTimeout, deps.Checks...))
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Get("/catalog", h.catalog)

	r.With(clientip.Middleware(allow, cfg.TrustProxy, h.log)).
		Post("/webhook/nowpayments", h.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware(deps.Identity, h.unauthorized))

		r.Get("/user/status", h.userStatus)
		r.With(h.limit(deps.QueryLimiter)).Post("/ai/query", h.query)

		r.Route("/payments", func(r chi.Router) {
			r.With(h.limit(deps.CheckoutLimiter)).Post("/create-subscription", h.createSubscription)
			r.With(h.limit(deps.CheckoutLimiter)).Post("/create-credits", h.createCredits)
			r.Get("/", h.listPayments)
			r.Get("/audit", h.auditTrail)
			r.Get("/{invoiceID}", h.payment)
			r.Get("/{invoiceID}/qr", h.paymentQR)
		})
	})

	return r, nil
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "creditgate"})
}

func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Checkout.Catalog())
}

func (h *handlers) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, h.log, err)
}

// limit throttles per authenticated user.
func (h *handlers) limit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return ratelimit.Middleware(l, caller, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
	}, h.log)
}

// caller returns the authenticated user id. Routes under /api always have
// one because of the identity middleware.
func caller(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id.UserID
}
