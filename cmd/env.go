package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/centerrank/internal/cache"
	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/metrics"
	"github.com/sells-group/centerrank/internal/recommend"
	"github.com/sells-group/centerrank/internal/resilience"
	"github.com/sells-group/centerrank/internal/scorer"
	"github.com/sells-group/centerrank/internal/status"
	"github.com/sells-group/centerrank/internal/store"
)

// serviceEnv holds the store, cache and recommendation service used by the
// recommend, status and serve commands.
type serviceEnv struct {
	Store    store.Store
	Service  *recommend.Service
	Registry *prometheus.Registry

	closeCache func() error
}

// Close waits for pending recommendation logs, then releases the cache and
// store.
func (e *serviceEnv) Close() {
	if e.Service != nil {
		e.Service.Wait()
	}
	if e.closeCache != nil {
		if err := e.closeCache(); err != nil {
			zap.L().Warn("cache close failed", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initService validates config, opens the store and cache, and wires the
// scoring pipeline. Callers should defer env.Close().
func initService(ctx context.Context) (*serviceEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env := &serviceEnv{Store: st, Registry: prometheus.NewRegistry()}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, err
	}

	m := metrics.New(env.Registry)

	c, closeCache, err := cache.New(ctx, cfg.Cache, m)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closeCache = closeCache

	engine, err := status.NewEngine(cfg.Operating)
	if err != nil {
		env.Close()
		return nil, err
	}
	region, err := geo.ParseRegion(cfg.Scoring.Region)
	if err != nil {
		env.Close()
		return nil, err
	}

	weights := scorer.WeightSetFromConfig(cfg.Scoring)
	agg, err := scorer.NewAggregator(weights, engine, region, scorer.WithMetrics(m))
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init scorer")
	}

	rec := recommend.NewRecommender(agg,
		recommend.WithConcurrency(cfg.Recommend.Concurrency),
		recommend.WithCenterTimeout(time.Duration(cfg.Recommend.CenterTimeoutMs)*time.Millisecond),
		recommend.WithMetrics(m),
	)
	env.Service = recommend.NewService(st, rec, cfg.Recommend,
		recommend.WithCache(c, time.Duration(cfg.Cache.TTLSecs)*time.Second),
		recommend.WithWeightsFingerprint(weights.Fingerprint()),
		recommend.WithLogSink(st),
		recommend.WithStatusEngine(engine),
		recommend.WithRetryPolicy(resilience.PolicyFromConfig(cfg.Retry, "directory")),
		recommend.WithServiceMetrics(m),
	)

	zap.L().Debug("service initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Driver),
		zap.String("region", string(region)),
		zap.String("weights", weights.Fingerprint()),
	)
	return env, nil
}
