package ratelimit_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/ratelimit"
)

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := ratelimit.New(ratelimit.NewRedisStore(client), 2, time.Minute, ratelimit.WithPrefix("rl:"))
	require.NoError(t, err)

	for range 2 {
		res, err := l.Allow(t.Context(), "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(t.Context(), "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("rl:user-1"))

	mr.FastForward(time.Minute)
	res, err = l.Allow(t.Context(), "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	mr.Close()
	_, err = l.Allow(t.Context(), "user-1")
	assert.Error(t, err)
}
