// Package recommend ranks candidate centers for a user and serves the
// ranked lists through a read-through cache.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/metrics"
	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/scorer"
)

var tracer = otel.Tracer("centerrank/recommend")

// DefaultCenterTimeout bounds the scoring of a single center.
const DefaultCenterTimeout = 2 * time.Second

// maxReasons caps the reasons attached to each result.
const maxReasons = 3

// Center drop reasons reported to metrics.
const (
	dropFailed      = "failed"
	dropTimeout     = "timeout"
	dropOutOfRadius = "out_of_radius"
)

// Scorer scores one center. *scorer.Aggregator satisfies it.
type Scorer interface {
	Score(ctx context.Context, in scorer.Input) (model.ScoreBreakdown, error)
}

// Request describes one ranking run.
type Request struct {
	Location model.Coordinate
	Profile  *model.UserProfile
	Severity model.SeverityCode
	// RadiusMeters re-checks the straight-line distance of each candidate.
	// Zero disables the check.
	RadiusMeters int
	Limit        int
	At           time.Time
}

// Recommender scores candidate centers concurrently and ranks them.
type Recommender struct {
	scorer        Scorer
	concurrency   int
	centerTimeout time.Duration
	metrics       *metrics.Metrics
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithConcurrency bounds the number of centers scored at once. Values <= 0
// use runtime.NumCPU.
func WithConcurrency(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithCenterTimeout sets the per-center scoring deadline.
func WithCenterTimeout(d time.Duration) Option {
	return func(r *Recommender) {
		if d > 0 {
			r.centerTimeout = d
		}
	}
}

// WithMetrics records dropped centers and batch latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recommender) { r.metrics = m }
}

// NewRecommender creates a Recommender around s.
func NewRecommender(s Scorer, opts ...Option) *Recommender {
	r := &Recommender{
		scorer:        s,
		concurrency:   runtime.NumCPU(),
		centerTimeout: DefaultCenterTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	center *model.Center
	b      model.ScoreBreakdown
	ok     bool
}

// Rank scores every center and returns the best req.Limit results ordered by
// total descending, ties broken by center id. Centers that fail, time out or
// fall outside the radius are dropped and logged.
func (r *Recommender) Rank(ctx context.Context, centers []model.Center, req Request) []model.RecommendationResult {
	ctx, span := tracer.Start(ctx, "recommend.Rank",
		trace.WithAttributes(attribute.Int("batch.candidates", len(centers))))
	defer span.End()

	start := time.Now()
	if req.At.IsZero() {
		req.At = time.Now()
	}

	out := make([]scored, len(centers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range centers {
		c := &centers[i]
		if req.RadiusMeters > 0 && geo.HaversineMeters(req.Location, c.Location) > req.RadiusMeters {
			r.drop(c.ID, dropOutOfRadius, nil)
			continue
		}
		g.Go(func() error {
			b, err := r.scoreOne(gctx, c, req)
			if err != nil {
				reason := dropFailed
				if errors.Is(err, context.DeadlineExceeded) {
					reason = dropTimeout
				}
				r.drop(c.ID, reason, err)
				return nil
			}
			out[i] = scored{center: c, b: b, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]model.RecommendationResult, 0, len(centers))
	for _, s := range out {
		if !s.ok {
			continue
		}
		results = append(results, buildResult(s.center, s.b, req.Location))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Breakdown.Total != results[j].Breakdown.Total {
			return results[i].Breakdown.Total > results[j].Breakdown.Total
		}
		return results[i].CenterID < results[j].CenterID
	})
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	r.metrics.ObserveBatch(len(centers), time.Since(start))
	span.SetAttributes(attribute.Int("batch.results", len(results)))
	return results
}

// scoreOne runs the scorer under the per-center deadline. A scorer that
// ignores cancellation is abandoned when the deadline passes.
func (r *Recommender) scoreOne(ctx context.Context, c *model.Center, req Request) (model.ScoreBreakdown, error) {
	ctx, cancel := context.WithTimeout(ctx, r.centerTimeout)
	defer cancel()

	type outcome struct {
		b   model.ScoreBreakdown
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		b, err := r.scorer.Score(ctx, scorer.Input{
			Center:   c,
			User:     req.Location,
			Profile:  req.Profile,
			Severity: req.Severity,
			At:       req.At,
		})
		done <- outcome{b, err}
	}()

	select {
	case o := <-done:
		return o.b, o.err
	case <-ctx.Done():
		return model.ScoreBreakdown{}, eris.Wrapf(ctx.Err(), "recommend: center %s", c.ID)
	}
}

func (r *Recommender) drop(centerID, reason string, err error) {
	r.metrics.CenterDropped(reason)
	fields := []zap.Field{zap.String("center_id", centerID), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	zap.L().Warn("recommend: center dropped", fields...)
}

func buildResult(c *model.Center, b model.ScoreBreakdown, user model.Coordinate) model.RecommendationResult {
	return model.RecommendationResult{
		CenterID:   c.ID,
		CenterName: c.Name,
		Breakdown:  b,
		Reasons:    reasons(b),
		Summary:    summarize(c, b, user),
	}
}

// summarize builds the display summary from the road-corrected distance the
// distance reason also reports, rounded to 10 m. Without a distance detail it
// falls back to the straight-line distance for every field.
func summarize(c *model.Center, b model.ScoreBreakdown, user model.Coordinate) model.CenterSummary {
	s := model.CenterSummary{Address: c.Address, Phone: c.Phone}
	if d := b.Distance; d != nil {
		s.DistanceMeters = roundTen(d.RoadMeters)
		s.DistanceText = d.DistanceText
		s.WalkTime = d.WalkText
		return s
	}
	straight := geo.HaversineMeters(user, c.Location)
	s.DistanceMeters = roundTen(straight)
	s.DistanceText = geo.FormatDistance(straight)
	s.WalkTime = geo.FormatWalk(geo.WalkMinutes(straight))
	return s
}

func roundTen(m int) int {
	return int(math.Round(float64(m)/10) * 10)
}

// reasons picks up to maxReasons explanations, strongest module first.
func reasons(b model.ScoreBreakdown) []string {
	type candidate struct {
		score int
		text  string
	}
	var cands []candidate

	if d := b.Distance; d != nil {
		cands = append(cands, candidate{b.DistanceScore, d.DistanceText + " away (" + d.WalkText + ")"})
	}
	if o := b.Operating; o != nil && (o.Status == model.StatusOpen || o.Status == model.StatusClosingSoon) {
		cands = append(cands, candidate{b.OperatingScore, o.Message})
	}
	if s := b.Specialty; s != nil && s.CertifiedStaff > 0 && s.TopCertification != "" {
		cands = append(cands, candidate{b.SpecialtyScore, "staffed by " + s.TopCertification})
	}
	if p := b.Program; p != nil {
		switch {
		case len(p.TopMatches) > 0 && len(p.TopMatches[0].Reasons) > 0:
			cands = append(cands, candidate{b.ProgramScore, p.TopMatches[0].Reasons[0]})
		case p.ActivePrograms > 0:
			cands = append(cands, candidate{b.ProgramScore, plural(p.ActivePrograms, "active program")})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > maxReasons {
		cands = cands[:maxReasons]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
