package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/centerrank/internal/cache"
	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/metrics"
	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/resilience"
	"github.com/sells-group/centerrank/internal/status"
)

var (
	// ErrInvalidRadius is returned for a negative or oversized search radius.
	ErrInvalidRadius = eris.New("recommend: invalid radius")
	// ErrInvalidLimit is returned for a negative or oversized result limit.
	ErrInvalidLimit = eris.New("recommend: invalid limit")
)

// Directory supplies candidate centers.
type Directory interface {
	FetchActiveCentersNear(ctx context.Context, loc model.Coordinate, radiusMeters int) ([]model.Center, error)
	GetCenter(ctx context.Context, id string) (*model.Center, error)
}

// LogSink records served recommendation lists.
type LogSink interface {
	RecordRecommendations(ctx context.Context, results []model.RecommendationResult, loc model.Coordinate, sessionID string) error
}

// Query is a recommendation request. Zero RadiusMeters and Limit select the
// configured defaults.
type Query struct {
	Location     model.Coordinate
	Profile      *model.UserProfile
	Severity     model.SeverityCode
	RadiusMeters int
	Limit        int
	SessionID    string
}

// Service validates queries, consults the cache, fetches candidates from the
// directory, ranks them and records the served list.
type Service struct {
	dir     Directory
	rec     *Recommender
	cfg     config.RecommendConfig
	engine  *status.Engine
	metrics *metrics.Metrics
	retry   resilience.RetryPolicy
	now     func() time.Time

	cache     cache.Cache
	cacheTTL  time.Duration
	weightsFP string

	sink       LogSink
	limiter    *rate.Limiter
	logTimeout time.Duration
	pending    sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables the read-through cache.
func WithCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithWeightsFingerprint adds the active weight configuration to cache keys
// so a weight change never serves stale rankings.
func WithWeightsFingerprint(fp string) ServiceOption {
	return func(s *Service) { s.weightsFP = fp }
}

// WithLogSink records served lists asynchronously.
func WithLogSink(sink LogSink) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// WithStatusEngine enables CenterStatus.
func WithStatusEngine(e *status.Engine) ServiceOption {
	return func(s *Service) { s.engine = e }
}

// WithRetryPolicy sets the retry policy for directory reads.
func WithRetryPolicy(p resilience.RetryPolicy) ServiceOption {
	return func(s *Service) { s.retry = p }
}

// WithServiceMetrics records cache and log-sink outcomes.
func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the evaluation instant.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. The log sink limiter allows
// cfg.LogRatePerSec records per second; zero disables the limit.
func NewService(dir Directory, rec *Recommender, cfg config.RecommendConfig, opts ...ServiceOption) *Service {
	s := &Service{
		dir:        dir,
		rec:        rec,
		cfg:        cfg,
		retry:      resilience.PolicyFromConfig(config.RetryConfig{}, "directory"),
		now:        time.Now,
		cache:      cache.Noop{},
		weightsFP:  "default",
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logTimeout: 3 * time.Second,
	}
	if cfg.LogRatePerSec > 0 {
		burst := int(cfg.LogRatePerSec)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.LogRatePerSec), burst)
	}
	if cfg.LogTimeoutMs > 0 {
		s.logTimeout = time.Duration(cfg.LogTimeoutMs) * time.Millisecond
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend returns the ranked list for q. Cache and log-sink failures are
// logged and never returned.
func (s *Service) Recommend(ctx context.Context, q Query) ([]model.RecommendationResult, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	key := CacheKey(q, s.weightsFP)
	if results, ok := s.cached(ctx, key); ok {
		s.record(results, q)
		return results, nil
	}

	centers, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) ([]model.Center, error) {
		return s.dir.FetchActiveCentersNear(ctx, q.Location, q.RadiusMeters)
	})
	if err != nil {
		return nil, eris.Wrap(err, "recommend: fetch centers")
	}

	results := s.rec.Rank(ctx, centers, Request{
		Location:     q.Location,
		Profile:      q.Profile,
		Severity:     q.Severity,
		RadiusMeters: q.RadiusMeters,
		Limit:        q.Limit,
		At:           s.now(),
	})

	s.store(ctx, key, results)
	s.record(results, q)
	return results, nil
}

func (s *Service) normalize(q Query) (Query, error) {
	if err := geo.ValidateCoordinate(q.Location); err != nil {
		return q, err
	}

	switch {
	case q.RadiusMeters == 0:
		q.RadiusMeters = s.cfg.DefaultRadiusMeters
	case q.RadiusMeters < 0 || (s.cfg.MaxRadiusMeters > 0 && q.RadiusMeters > s.cfg.MaxRadiusMeters):
		return q, eris.Wrapf(ErrInvalidRadius, "%d m (max %d)", q.RadiusMeters, s.cfg.MaxRadiusMeters)
	}
	if q.RadiusMeters <= 0 {
		return q, eris.Wrap(ErrInvalidRadius, "no default radius configured")
	}

	switch {
	case q.Limit == 0:
		q.Limit = s.cfg.DefaultLimit
	case q.Limit < 0 || (s.cfg.MaxLimit > 0 && q.Limit > s.cfg.MaxLimit):
		return q, eris.Wrapf(ErrInvalidLimit, "%d (max %d)", q.Limit, s.cfg.MaxLimit)
	}
	if q.Limit <= 0 {
		return q, eris.Wrap(ErrInvalidLimit, "no default limit configured")
	}

	if q.SessionID == "" {
		q.SessionID = uuid.New().String()
	}
	return q, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]model.RecommendationResult, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			s.metrics.CacheResult("miss")
		} else {
			s.metrics.CacheResult("error")
			zap.L().Warn("recommend: cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var results []model.RecommendationResult
	if err := json.Unmarshal(data, &results); err != nil {
		s.metrics.CacheResult("error")
		zap.L().Warn("recommend: cache entry undecodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	s.metrics.CacheResult("hit")
	return results, true
}

func (s *Service) store(ctx context.Context, key string, results []model.RecommendationResult) {
	data, err := json.Marshal(results)
	if err != nil {
		zap.L().Warn("recommend: cache encode failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		zap.L().Warn("recommend: cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// record hands the served list to the log sink without blocking the caller.
func (s *Service) record(results []model.RecommendationResult, q Query) {
	if s.sink == nil {
		return
	}
	if !s.limiter.Allow() {
		s.metrics.LogSinkDropped("rate_limited")
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.logTimeout)
		defer cancel()
		if err := s.sink.RecordRecommendations(ctx, results, q.Location, q.SessionID); err != nil {
			s.metrics.LogSinkDropped("error")
			zap.L().Warn("recommend: log sink failed",
				zap.String("session_id", q.SessionID),
				zap.Int("results", len(results)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending log-sink writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// CenterStatus evaluates the operating status of one center now.
func (s *Service) CenterStatus(ctx context.Context, id string) (*model.Center, status.Result, error) {
	if s.engine == nil {
		return nil, status.Result{}, eris.New("recommend: status engine not configured")
	}
	c, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (*model.Center, error) {
		return s.dir.GetCenter(ctx, id)
	})
	if err != nil {
		return nil, status.Result{}, eris.Wrapf(err, "recommend: get center %s", id)
	}
	return c, s.engine.Evaluate(c, s.now()), nil
}

// CacheKey builds the composite cache key: location rounded to three
// decimals, profile fingerprint, severity, radius, limit and weights.
func CacheKey(q Query, weightsFP string) string {
	severity := string(q.Severity)
	if severity == "" {
		severity = "none"
	}
	return fmt.Sprintf("%.3f:%.3f:%s:%s:%d:%d:%s",
		q.Location.Latitude, q.Location.Longitude,
		ProfileFingerprint(q.Profile), severity,
		q.RadiusMeters, q.Limit, weightsFP,
	)
}

// ProfileFingerprint hashes a profile for cache keys. Symptom order does not
// matter. A nil profile fingerprints as "none".
func ProfileFingerprint(p *model.UserProfile) string {
	if p == nil {
		return "none"
	}
	norm := *p
	norm.Symptoms = append([]string(nil), p.Symptoms...)
	sort.Strings(norm.Symptoms)

	data, _ := json.Marshal(norm)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
