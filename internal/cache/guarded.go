package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/centerrank/internal/resilience"
)

// Guarded wraps a Cache with a circuit breaker and a per-operation timeout.
// Misses do not count as failures.
type Guarded struct {
	next    Cache
	breaker *resilience.Breaker
	timeout time.Duration
}

// NewGuarded wraps next. A non-positive timeout disables the deadline.
func NewGuarded(next Cache, cfg resilience.BreakerConfig, timeout time.Duration) *Guarded {
	cfg.IsFailure = func(err error) bool {
		return err != nil && !errors.Is(err, ErrMiss)
	}
	return &Guarded{next: next, breaker: resilience.NewBreaker(cfg), timeout: timeout}
}

// Get reads through the breaker.
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return resilience.Call(ctx, g.breaker, func(ctx context.Context) ([]byte, error) {
		return g.next.Get(ctx, key)
	})
}

// Set writes through the breaker.
func (g *Guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.next.Set(ctx, key, value, ttl)
	})
}

// State reports the breaker state.
func (g *Guarded) State() resilience.BreakerState {
	return g.breaker.State()
}

func (g *Guarded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}
