// Package cache stores serialized recommendation lists with a TTL. Backends
// are Redis, an in-process LRU, or nothing.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/metrics"
	"github.com/sells-group/centerrank/internal/resilience"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = eris.New("cache: miss")

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Noop never stores anything; every Get misses.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// defaultPingTimeout bounds the startup Redis ping when no operation timeout
// is configured.
const defaultPingTimeout = 2 * time.Second

// New builds the configured cache and its close function. The Redis backend
// is wrapped in a circuit breaker and an operation timeout. An unreachable
// Redis at startup is logged and tolerated; the breaker opens on the first
// failed operations and callers fall back to direct computation.
func New(ctx context.Context, cfg config.CacheConfig, m *metrics.Metrics) (Cache, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Driver {
	case "", "none":
		return Noop{}, noClose, nil
	case "memory":
		return NewMemory(cfg.MaxEntries), noClose, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "cache: parse redis url")
		}
		client := redis.NewClient(opts)
		opTimeout := time.Duration(cfg.OperationTimeoutMs) * time.Millisecond
		if err := ping(ctx, client, opTimeout); err != nil {
			zap.L().Warn("cache: redis unreachable, continuing degraded",
				zap.String("addr", opts.Addr),
				zap.Error(err),
			)
			m.CacheResult("error")
		}
		rc := NewRedis(client, cfg.KeyPrefix)
		return NewGuarded(rc, breakerConfig(cfg, m), opTimeout), client.Close, nil
	default:
		return nil, nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

func ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return eris.Wrap(client.Ping(ctx).Err(), "cache: ping redis")
}

func breakerConfig(cfg config.CacheConfig, m *metrics.Metrics) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Name:             "cache",
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.ResetTimeoutSecs) * time.Second,
		OnStateChange: func(name string, _, to resilience.BreakerState) {
			m.BreakerState(name, int(to))
		},
	}
}
