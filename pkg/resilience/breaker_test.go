package resilience_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/creditgate/pkg/resilience"
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

var errUpstream = errors.New("upstream down")

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreaker(t *testing.T) {
	t.Parallel()

	t.Run("opens after threshold and rejects", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Unix(0, 0)}
		b := resilience.NewBreaker(2, 1, time.Minute).WithClock(clock.Now)

		assert.ErrorIs(t, b.Do(fail, nil), errUpstream)
		assert.Equal(t, resilience.StateClosed, b.State())
		assert.ErrorIs(t, b.Do(fail, nil), errUpstream)
		assert.Equal(t, resilience.StateOpen, b.State())

		called := false
		err := b.Do(func() error { called = true; return nil }, nil)
		assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("half-open trial closes on success", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Unix(0, 0)}
		b := resilience.NewBreaker(1, 1, time.Minute).WithClock(clock.Now)

		_ = b.Do(fail, nil)
		clock.Advance(time.Minute)
		assert.Equal(t, resilience.StateHalfOpen, b.State())

		assert.NoError(t, b.Do(succeed, nil))
		assert.Equal(t, resilience.StateClosed, b.State())
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Unix(0, 0)}
		b := resilience.NewBreaker(1, 1, time.Minute).WithClock(clock.Now)

		_ = b.Do(fail, nil)
		clock.Advance(time.Minute)
		_ = b.Do(fail, nil)
		assert.Equal(t, resilience.StateOpen, b.State())
		assert.ErrorIs(t, b.Do(succeed, nil), resilience.ErrCircuitOpen)
	})

	t.Run("uncountable errors do not trip", func(t *testing.T) {
		t.Parallel()
		b := resilience.NewBreaker(1, 1, time.Minute)
		never := func(error) bool { return false }

		for range 3 {
			assert.ErrorIs(t, b.Do(fail, never), errUpstream)
		}
		assert.Equal(t, resilience.StateClosed, b.State())
	})

	t.Run("success resets failure count", func(t *testing.T) {
		t.Parallel()
		b := resilience.NewBreaker(2, 1, time.Minute)
		_ = b.Do(fail, nil)
		_ = b.Do(succeed, nil)
		_ = b.Do(fail, nil)
		assert.Equal(t, resilience.StateClosed, b.State())
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "closed", resilience.StateClosed.String())
	assert.Equal(t, "open", resilience.StateOpen.String())
	assert.Equal(t, "half-open", resilience.StateHalfOpen.String())
	assert.Equal(t, "unknown", resilience.State(9).String())
}
