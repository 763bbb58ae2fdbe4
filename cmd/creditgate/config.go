package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/config"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/pkg/httpserver"
	"github.com/dmitrymomot/creditgate/pkg/identity"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/pg"
	"github.com/dmitrymomot/creditgate/pkg/ratelimit"
	"github.com/dmitrymomot/creditgate/pkg/redis"
	"github.com/dmitrymomot/creditgate/svc/api"
	"github.com/dmitrymomot/creditgate/svc/completion"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

var errUnknownDriver = errors.New("unknown store driver")

// appConfig holds process-level settings.
type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Name            string        `env:"APP_NAME" envDefault:"creditgate"`
	LogLevel        string        `env:"LOG_LEVEL"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"postgres"`
	CatalogPath     string        `env:"CATALOG_PATH"`
	MetricsPrefix   string        `env:"METRICS_NAMESPACE" envDefault:"creditgate"`
	PendingTTL      time.Duration `env:"INVOICE_PENDING_TTL" envDefault:"1h"`
	DeliveryLockTTL time.Duration `env:"DELIVERY_LOCK_TTL" envDefault:"30s"`
}

// settings is every configuration section of the service. Nested structs
// are parsed by the same loader call.
type settings struct {
	App         appConfig
	HTTP        httpserver.Config
	API         api.Config
	Postgres    pg.Config
	Redis       redis.Config
	NowPayments billing.NowPaymentsConfig
	Policy      entitlement.Policy
	Identity    identity.Config
	Completion  completion.Config
	RateLimit   ratelimit.Config
	Sweeper     billing.SweeperConfig
}

func loadSettings(envFiles ...string) (settings, error) {
	var opts []config.Option
	if len(envFiles) > 0 {
		opts = append(opts, config.WithEnvFile(envFiles...))
	}

	var s settings
	if err := config.Load(&s, opts...); err != nil {
		return settings{}, err
	}

	switch s.App.StoreDriver {
	case driverPostgres, driverMemory:
	default:
		return settings{}, fmt.Errorf("%w: %q", errUnknownDriver, s.App.StoreDriver)
	}
	return s, nil
}

func newLogger(app appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithOutput(os.Stdout),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			id := middleware.GetReqID(ctx)
			return logger.RequestID(id), id != ""
		}),
	}
	if app.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(app.LogLevel)))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return log
}
