// Package pg bootstraps a PostgreSQL layer on top of pgx/v5 and goose/v3.
//
// The package keeps a small surface and leaves the driver types exposed, so
// stores work with *pgxpool.Pool and pgx.Tx directly and can reach for any
// pgx feature the helpers do not wrap.
//
// # Architecture
//
// Five building blocks cooperate:
//
//   - Config is populated from environment variables via caarlos0/env and
//     controls pool limits, health-check cadence and connection retries.
//   - Connect opens a *pgxpool.Pool, retrying with a linear back-off until
//     the database answers a ping or ctx is cancelled.
//   - Migrate applies goose migrations read from an fs.FS, so each store
//     package can embed its own schema next to the queries that use it.
//   - WithTx wraps a unit of work in a read-committed transaction that is
//     rolled back when fn returns an error or panics.
//   - Healthcheck adapts the pool to the func(context.Context) error shape
//     used by the readiness endpoint.
//
// # Usage
//
//	package store
//
//	import (
//		"context"
//		"embed"
//		"log/slog"
//
//		"github.com/jackc/pgx/v5"
//
//		"github.com/dmitrymomot/creditgate/pkg/config"
//		"github.com/dmitrymomot/creditgate/pkg/pg"
//	)
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	func Open(ctx context.Context, log *slog.Logger) error {
//		var cfg pg.Config
//		if err := config.Load(&cfg); err != nil {
//			return err
//		}
//
//		pool, err := pg.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer pool.Close()
//
//		if err := pg.Migrate(ctx, pool, cfg, migrations, "migrations", log); err != nil {
//			return err
//		}
//
//		return pg.WithTx(ctx, pool, func(tx pgx.Tx) error {
//			_, err := tx.Exec(ctx, `UPDATE user_entitlements SET updated_at = now()`)
//			return err
//		})
//	}
//
// # Configuration
//
// DATABASE_URL is required. Pool sizing (PG_MAX_OPEN_CONNS,
// PG_MAX_IDLE_CONNS), connection lifetimes, the retry schedule
// (PG_RETRY_ATTEMPTS, PG_RETRY_INTERVAL) and the goose version table
// (PG_MIGRATIONS_TABLE) all have defaults; see the field tags on Config.
//
// # Error Handling
//
// Connect, Migrate and Healthcheck wrap failures with the Err* sentinels of
// this package. IsNotFoundError and IsDuplicateKeyError unwrap pgx and
// *pgconn.PgError values, and ConstraintName reports which constraint a
// violation hit, so stores can translate driver errors into domain
// sentinels:
//
//	if pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "payment_intents_one_pending_idx" {
//		return billing.ErrPendingIntentExists
//	}
package pg
