package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/centerrank/internal/resilience"
)

type flakyCache struct {
	err   error
	calls int
}

func (f *flakyCache) Get(context.Context, string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func (f *flakyCache) Set(context.Context, string, []byte, time.Duration) error {
	f.calls++
	return f.err
}

func TestGuarded_MissesDoNotTrip(t *testing.T) {
	inner := &flakyCache{err: ErrMiss}
	g := NewGuarded(inner, resilience.BreakerConfig{FailureThreshold: 2}, 0)

	for i := 0; i < 10; i++ {
		_, err := g.Get(context.Background(), "k")
		assert.True(t, errors.Is(err, ErrMiss))
	}
	assert.Equal(t, resilience.StateClosed, g.State())
	assert.Equal(t, 10, inner.calls)
}

func TestGuarded_OpensOnBackendErrors(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	g := NewGuarded(inner, resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}, 0)

	_, _ = g.Get(context.Background(), "k")
	_ = g.Set(context.Background(), "k", nil, time.Minute)
	assert.Equal(t, resilience.StateOpen, g.State())

	_, err := g.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, 2, inner.calls)
}

type slowCache struct{}

func (slowCache) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowCache) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestGuarded_Timeout(t *testing.T) {
	g := NewGuarded(slowCache{}, resilience.BreakerConfig{}, 10*time.Millisecond)

	start := time.Now()
	_, err := g.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}
