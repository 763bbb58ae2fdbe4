package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestNew(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	_, err := ratelimit.New(nil, 1, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)
	_, err = ratelimit.New(store, 0, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = ratelimit.New(store, 1, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
}

func TestLimiterMemory(t *testing.T) {
	t.Parallel()

	clock := newClock()
	store := ratelimit.NewMemoryStore(ratelimit.WithMemoryClock(clock.Now))
	l, err := ratelimit.New(store, 3, time.Minute, ratelimit.WithClock(clock.Now))
	require.NoError(t, err)

	for i := range 3 {
		res, err := l.Allow(t.Context(), "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(t.Context(), "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter(clock.Now()))

	other, err := l.Allow(t.Context(), "user-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys have separate budgets")

	clock.Advance(time.Minute)
	res, err = l.Allow(t.Context(), "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window reopens")
	assert.Equal(t, 2, res.Remaining)

	_, err = l.Allow(t.Context(), "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

func TestLimiterPrefixSharesStore(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	queries, err := ratelimit.New(store, 1, time.Minute, ratelimit.WithPrefix("query:"))
	require.NoError(t, err)
	checkout, err := ratelimit.New(store, 1, time.Minute, ratelimit.WithPrefix("checkout:"))
	require.NoError(t, err)

	res, err := queries.Allow(t.Context(), "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = checkout.Allow(t.Context(), "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, store.Len())
}

func TestLimiterConcurrent(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.New(ratelimit.NewMemoryStore(), 10, time.Hour)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(t.Context(), "user")
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
