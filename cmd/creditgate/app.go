package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/httpserver"
	"github.com/dmitrymomot/creditgate/pkg/identity"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/metrics"
	"github.com/dmitrymomot/creditgate/pkg/pg"
	"github.com/dmitrymomot/creditgate/pkg/ratelimit"
	"github.com/dmitrymomot/creditgate/pkg/redis"
	"github.com/dmitrymomot/creditgate/pkg/webhook"
	"github.com/dmitrymomot/creditgate/svc/api"
	"github.com/dmitrymomot/creditgate/svc/completion"
	"github.com/dmitrymomot/creditgate/svc/memstore"
	"github.com/dmitrymomot/creditgate/svc/pgstore"
	"github.com/dmitrymomot/creditgate/svc/redisguard"
)

// store is every persistence port the service needs from one backend.
type store interface {
	entitlement.Store
	billing.Store
	audit.Storage
	Ping(ctx context.Context) error
}

var (
	_ store = (*memstore.Store)(nil)
	_ store = (*pgstore.Store)(nil)
)

// app is the wired service.
type app struct {
	handler http.Handler
	sweeper *billing.Sweeper
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp connects the backends and wires every component. On error the
// already opened connections are closed.
func buildApp(ctx context.Context, s settings, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var checks []httpserver.Check

	var st store
	switch s.App.StoreDriver {
	case driverMemory:
		log.WarnContext(ctx, "using in-memory store, data is lost on restart", logger.Component("app"))
		st = memstore.New()
	default:
		pool, err := pg.Connect(ctx, s.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		st = pgstore.New(pool)
	}
	checks = append(checks, httpserver.Check{Name: "store", Probe: st.Ping})

	var (
		guard   billing.DeliveryGuard
		rlStore ratelimit.Store = ratelimit.NewMemoryStore()
	)
	if s.Redis.Enabled() {
		client, err := redis.Connect(ctx, s.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
		guard = redisguard.New(client, redisguard.WithTTL(s.App.DeliveryLockTTL), redisguard.WithLogger(log))
		rlStore = ratelimit.NewRedisStore(client)
	}

	catalog, err := billing.LoadCatalog(s.App.CatalogPath)
	if err != nil {
		return nil, err
	}

	ents, err := entitlement.NewService(st, entitlement.WithPolicy(s.Policy), entitlement.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var provider billing.InvoiceProvider
	np, err := billing.NewNowPayments(s.NowPayments, billing.WithProviderLogger(log))
	switch {
	case errors.Is(err, billing.ErrProviderNotConfig):
		log.WarnContext(ctx, "payment provider not configured, checkout disabled", logger.Component("app"))
	case err != nil:
		return nil, err
	default:
		provider = np
	}

	registry := billing.NewRegistry(st, provider,
		billing.WithPendingTTL(s.App.PendingTTL),
		billing.WithProviderTimeout(s.NowPayments.Timeout),
		billing.WithRegistryLogger(log))
	if s.Sweeper.Enabled {
		a.sweeper = billing.NewSweeper(registry, s.Sweeper, log)
	}

	verifierOpts := []webhook.VerifierOption{webhook.WithLogger(log)}
	if s.NowPayments.AllowInsecureWebhooks {
		verifierOpts = append(verifierOpts, webhook.WithInsecureSkip())
	}
	verifier, err := webhook.NewVerifier(s.NowPayments.IPNSecret, verifierOpts...)
	if err != nil {
		return nil, fmt.Errorf("NOWPAYMENTS_IPN_SECRET: %w", err)
	}
	if verifier.Insecure() {
		log.WarnContext(ctx, "webhook signatures are NOT verified", logger.Component("app"))
	}

	applierOpts := []billing.ApplierOption{billing.WithApplierLogger(log)}
	if guard != nil {
		applierOpts = append(applierOpts, billing.WithDeliveryGuard(guard))
	}
	applier := billing.NewApplier(verifier, registry, st, audit.NewRecorder(st), ents.Policy(), applierOpts...)

	var completer api.Completer
	if s.Completion.Enabled() {
		c, err := completion.New(s.Completion, completion.WithLogger(log))
		if err != nil {
			return nil, err
		}
		completer = c
	} else {
		log.WarnContext(ctx, "AI completion not configured, queries answer 503", logger.Component("app"))
	}

	ids, err := identity.New(s.Identity)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}

	deps := api.Deps{
		Entitlements: ents,
		Checkout:     billing.NewCheckout(registry, catalog, ents, log),
		Registry:     registry,
		Applier:      applier,
		Audit:        audit.NewReader(st),
		Identity:     ids,
		Completer:    completer,
		Metrics:      metrics.New(s.App.MetricsPrefix),
		Checks:       checks,
		Logger:       log,
	}
	if s.RateLimit.Enabled {
		if deps.QueryLimiter, err = ratelimit.New(rlStore, s.RateLimit.QueryLimit, s.RateLimit.QueryWindow,
			ratelimit.WithPrefix("creditgate:rl:query:")); err != nil {
			return nil, err
		}
		if deps.CheckoutLimiter, err = ratelimit.New(rlStore, s.RateLimit.CheckoutLimit, s.RateLimit.CheckoutWindow,
			ratelimit.WithPrefix("creditgate:rl:checkout:")); err != nil {
			return nil, err
		}
	}

	apiCfg := s.API
	apiCfg.SignatureHeader = s.NowPayments.SignatureHeader
	if a.handler, err = api.NewRouter(apiCfg, deps); err != nil {
		return nil, err
	}
	return a, nil
}
