package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/resilience"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedis(client, "centerrank:rec:")

	_, err := c.Get(ctx, "abc")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Set(ctx, "abc", []byte(`[{"center_id":"a"}]`), 10*time.Minute))
	assert.True(t, mr.Exists("centerrank:rec:abc"))
	assert.Equal(t, 10*time.Minute, mr.TTL("centerrank:rec:abc"))

	got, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"center_id":"a"}]`, string(got))
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedis(client, "")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestRedis_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedis(client, "")
	mr.Close()

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
	assert.Error(t, c.Set(ctx, "k", []byte("v"), time.Minute))
}

func TestNew_Drivers(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := New(ctx, config.CacheConfig{Driver: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)
	assert.NoError(t, closeFn())

	c, _, err = New(ctx, config.CacheConfig{Driver: "memory", MaxEntries: 8}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	mr := miniredis.RunT(t)
	c, closeFn, err = New(ctx, config.CacheConfig{Driver: "redis", RedisURL: "redis://" + mr.Addr() + "/0", KeyPrefix: "p:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Guarded{}, c)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("p:k"))
	assert.NoError(t, closeFn())

	_, _, err = New(ctx, config.CacheConfig{Driver: "memcached"}, nil)
	assert.Error(t, err)

	_, _, err = New(ctx, config.CacheConfig{Driver: "redis", RedisURL: "::not a url"}, nil)
	assert.Error(t, err)
}

func TestNew_RedisUnreachableDegrades(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, closeFn, err := New(ctx, config.CacheConfig{
		Driver:             "redis",
		RedisURL:           "redis://" + addr + "/0",
		FailureThreshold:   2,
		ResetTimeoutSecs:   60,
		OperationTimeoutMs: 200,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	t.Cleanup(func() { _ = closeFn() })

	g, ok := c.(*Guarded)
	require.True(t, ok)

	for range 2 {
		_, err = c.Get(ctx, "k")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrMiss))
	}
	assert.Equal(t, resilience.StateOpen, g.State())

	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
}

func TestNoop(t *testing.T) {
	var c Noop
	assert.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, err := c.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrMiss))
}
