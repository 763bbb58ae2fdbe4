// Package redisguard is a Redis-backed billing.DeliveryGuard. It holds a
// short-lived lock per payment event so that a duplicate delivery racing the
// first one is told to retry instead of waiting on the database.
package redisguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/logger"
)

const (
	DefaultTTL    = 30 * time.Second
	DefaultPrefix = "creditgate:delivery:"

	releaseTimeout = 2 * time.Second
)

var _ billing.DeliveryGuard = (*Guard)(nil)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another delivery is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard locks payment events in Redis.
type Guard struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL sets the lock lifetime. It must exceed the slowest settlement.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(g *Guard) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// New creates a guard on client.
func New(client redis.UniversalClient, opts ...Option) *Guard {
	if client == nil {
		panic("redisguard: client is required")
	}
	g := &Guard{client: client, ttl: DefaultTTL, prefix: DefaultPrefix, log: logger.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire takes the lock for key or returns billing.ErrDeliveryInProgress.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := g.prefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire delivery lock: %w", err)
	}
	if !ok {
		return nil, billing.ErrDeliveryInProgress
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, g.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			g.log.WarnContext(rctx, "failed to release delivery lock",
				logger.Component("redisguard"), slog.String("key", redisKey), logger.Error(err))
		}
	}, nil
}
