package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/creditgate/pkg/logger"
)

// Service is the read path and query gate over the ledger.
type Service interface {
	// Get returns the user's entitlement after lazy maintenance: the row is
	// created on first access, a lapsed subscription is demoted and the free
	// tier is refreshed when due.
	Get(ctx context.Context, userID string) (Entitlement, error)

	// TryConsume gates one AI query. Premium users pass without a debit,
	// others pay one credit. A denial is a Decision, not an error; errors
	// are store faults.
	TryConsume(ctx context.Context, userID string) (Decision, error)

	// Refund returns credits taken by TryConsume when the downstream call failed.
	Refund(ctx context.Context, userID string, credits int64) (Entitlement, error)

	// MarkSubscriptionPending flags a free user as awaiting a subscription payment.
	MarkSubscriptionPending(ctx context.Context, userID string) (Entitlement, error)

	// Policy exposes the constants the service runs with.
	Policy() Policy
}

// DefaultRefreshTimeout bounds one shared maintenance pass.
const DefaultRefreshTimeout = 5 * time.Second

type service struct {
	store   Store
	policy  Policy
	now     func() time.Time
	log     *slog.Logger
	reads   singleflight.Group
	timeout time.Duration
}

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) ServiceOption {
	return func(s *service) { s.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRefreshTimeout bounds the maintenance pass shared by concurrent reads.
func WithRefreshTimeout(d time.Duration) ServiceOption {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates the entitlement service. Panics when store is nil and
// returns ErrInvalidPolicy for inconsistent policies.
func NewService(store Store, opts ...ServiceOption) (Service, error) {
	if store == nil {
		panic("entitlement: Store is required")
	}

	s := &service{
		store:   store,
		policy:  DefaultPolicy(),
		now:     time.Now,
		log:     logger.Discard(),
		timeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) Policy() Policy { return s.policy }

func (s *service) Get(ctx context.Context, userID string) (Entitlement, error) {
	if userID == "" {
		return Entitlement{}, ErrEmptyUserID
	}

	// Concurrent reads of one user share a single maintenance pass. The pass
	// is detached from whichever caller started it, so a cancelled request
	// does not fail the others waiting on it.
	ch := s.reads.DoChan(userID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(rctx, userID)
	})

	select {
	case <-ctx.Done():
		return Entitlement{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entitlement{}, res.Err
		}
		return res.Val.(Entitlement).Clone(), nil
	}
}

func (s *service) refresh(ctx context.Context, userID string) (Entitlement, error) {
	now := s.now()

	e, err := s.store.Ensure(ctx, userID, s.policy.InitialQuota, now)
	if err != nil {
		return Entitlement{}, storeError(err)
	}

	if s.policy.PremiumLapsed(e, now) {
		if e, err = s.store.DemoteExpired(ctx, userID, now); err != nil {
			return Entitlement{}, storeError(err)
		}
		s.log.InfoContext(ctx, "premium subscription lapsed",
			logger.Component("entitlement"), logger.UserID(userID))
	}

	if s.policy.NeedsFreeReset(e, now) {
		before := e.CreditBalance
		if e, err = s.store.ResetFreeTier(ctx, userID, s.policy.ResetRule(), now); err != nil {
			return Entitlement{}, storeError(err)
		}
		s.log.DebugContext(ctx, "free tier refreshed",
			logger.Component("entitlement"), logger.UserID(userID),
			slog.Int64("before", before), slog.Int64("after", e.CreditBalance))
	}

	return e, nil
}

func (s *service) TryConsume(ctx context.Context, userID string) (Decision, error) {
	e, err := s.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	if e.IsPremiumAt(s.now()) {
		return Decision{Allowed: true, Premium: true, Remaining: e.CreditBalance}, nil
	}

	remaining, err := s.store.Consume(ctx, userID)
	if errors.Is(err, ErrInsufficientCredits) {
		return Decision{Allowed: false, Reason: ReasonNoCredits}, nil
	}
	if err != nil {
		return Decision{}, storeError(err)
	}

	return Decision{Allowed: true, Remaining: remaining}, nil
}

func (s *service) Refund(ctx context.Context, userID string, credits int64) (Entitlement, error) {
	if userID == "" {
		return Entitlement{}, ErrEmptyUserID
	}
	if credits <= 0 {
		return Entitlement{}, ErrInvalidAmount
	}

	e, err := s.store.Grant(ctx, userID, credits)
	if err != nil {
		return Entitlement{}, storeError(err)
	}
	return e, nil
}

func (s *service) MarkSubscriptionPending(ctx context.Context, userID string) (Entitlement, error) {
	if userID == "" {
		return Entitlement{}, ErrEmptyUserID
	}

	e, err := s.store.MarkPending(ctx, userID)
	if err != nil {
		return Entitlement{}, storeError(err)
	}
	return e, nil
}
