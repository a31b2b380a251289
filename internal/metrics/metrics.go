// Package metrics exposes Prometheus collectors for the scoring engine.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "centerrank"

// Metrics holds the engine's collectors.
type Metrics struct {
	moduleFailures *prometheus.CounterVec
	centerDrops    *prometheus.CounterVec
	cacheRequests  *prometheus.CounterVec
	logSinkDrops   *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	batchDuration  prometheus.Histogram
	batchSize      prometheus.Histogram
}

// New registers the collectors with reg, or the default registerer if nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		moduleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "module_failures_total",
			Help:      "Scoring modules that failed and fell back to the default score",
		}, []string{"module"}),
		centerDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "center_drops_total",
			Help:      "Centers dropped from a batch because aggregation failed",
		}, []string{"reason"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Recommendation cache lookups by result",
		}, []string{"result"}),
		logSinkDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "log_sink_drops_total",
			Help:      "Recommendation log writes that were skipped or failed",
		}, []string{"reason"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"backend"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "batch_duration_seconds",
			Help:      "Time to score and rank one batch of centers",
			Buckets:   prometheus.DefBuckets,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "batch_centers",
			Help:      "Candidate centers per batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.moduleFailures,
		m.centerDrops,
		m.cacheRequests,
		m.logSinkDrops,
		m.breakerState,
		m.batchDuration,
		m.batchSize,
	)
	return m
}

// ModuleFailed counts a scoring module failure.
func (m *Metrics) ModuleFailed(module string) {
	if m == nil {
		return
	}
	m.moduleFailures.WithLabelValues(module).Inc()
}

// CenterDropped counts a center removed from a batch.
func (m *Metrics) CenterDropped(reason string) {
	if m == nil {
		return
	}
	m.centerDrops.WithLabelValues(reason).Inc()
}

// CacheResult counts a cache lookup: "hit", "miss" or "error".
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// LogSinkDropped counts a recommendation log that was not written.
func (m *Metrics) LogSinkDropped(reason string) {
	if m == nil {
		return
	}
	m.logSinkDrops.WithLabelValues(reason).Inc()
}

// BreakerState records a breaker transition.
func (m *Metrics) BreakerState(backend string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(backend).Set(float64(state))
}

// ObserveBatch records one batch's size and duration.
func (m *Metrics) ObserveBatch(centers int, d time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(centers))
	m.batchDuration.Observe(d.Seconds())
}
