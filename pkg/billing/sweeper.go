package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/logger"
)

const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultAbandonAfter  = 24 * time.Hour
	DefaultSweepBatch    = 100
)

// SweeperConfig controls how abandoned pending intents are expired.
type SweeperConfig struct {
	Enabled      bool          `env:"SWEEPER_ENABLED" envDefault:"true"`
	Interval     time.Duration `env:"SWEEPER_INTERVAL" envDefault:"10m"`
	AbandonAfter time.Duration `env:"SWEEPER_ABANDON_AFTER" envDefault:"24h"`
	BatchSize    int           `env:"SWEEPER_BATCH_SIZE" envDefault:"100"`
}

// Sweeper periodically expires pending intents that outlived the invoice
// lifetime, so abandoned subscription checkouts stop reporting pending.
type Sweeper struct {
	registry *Registry
	cfg      SweeperConfig
	now      func() time.Time
	log      *slog.Logger
}

// NewSweeper creates a sweeper over registry. Zero config values fall back to
// the package defaults.
func NewSweeper(registry *Registry, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if registry == nil {
		panic("billing: Registry is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = DefaultAbandonAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatch
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Sweeper{registry: registry, cfg: cfg, now: registry.now, log: log}
}

// Sweep runs one pass, draining full batches until a short one comes back.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.AbandonAfter)
	total := 0
	for {
		n, err := s.registry.ExpireStale(ctx, cutoff, s.cfg.BatchSize)
		total += n
		if err != nil || n < s.cfg.BatchSize {
			return total, err
		}
	}
}

// Run sweeps on every tick until ctx is done. Sweep errors are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.InfoContext(ctx, "intent sweeper started",
		logger.Component("sweeper"), logger.Duration(s.cfg.Interval))

	for {
		if n, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.ErrorContext(ctx, "intent sweep failed", logger.Component("sweeper"), logger.Error(err))
		} else if n > 0 {
			s.log.InfoContext(ctx, "intent sweep finished", logger.Component("sweeper"), slog.Int("expired", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
