package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/metrics"
	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/program"
	"github.com/sells-group/centerrank/internal/specialty"
	"github.com/sells-group/centerrank/internal/status"
)

var tracer = otel.Tracer("centerrank/scorer")

// Module names, also used in ScoreBreakdown.FailedModules.
const (
	ModuleDistance  = "distance"
	ModuleOperating = "operating"
	ModuleSpecialty = "specialty"
	ModuleProgram   = "program"
)

// DefaultModuleScore substitutes for a module that failed.
const DefaultModuleScore = 50

// ErrAllModulesFailed is returned when no module produced a score.
var ErrAllModulesFailed = eris.New("scorer: all modules failed")

// Input is everything needed to score one center.
type Input struct {
	Center   *model.Center
	User     model.Coordinate
	Profile  *model.UserProfile
	Severity model.SeverityCode
	At       time.Time
}

// ModuleOutput is a module's score and the detail it contributes to the
// breakdown.
type ModuleOutput struct {
	Score  int
	Detail func(b *model.ScoreBreakdown)
}

// ModuleFunc computes one module's score.
type ModuleFunc func(ctx context.Context, in Input) (ModuleOutput, error)

type module struct {
	name string
	fn   ModuleFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMetrics records module failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithModule replaces the named module's implementation.
func WithModule(name string, fn ModuleFunc) Option {
	return func(a *Aggregator) {
		for i := range a.modules {
			if a.modules[i].name == name {
				a.modules[i].fn = fn
			}
		}
	}
}

// Aggregator runs the four scoring modules for a center and combines them.
// It holds no per-request state and is safe for concurrent use.
type Aggregator struct {
	weights WeightSet
	modules [4]module
	metrics *metrics.Metrics
}

// NewAggregator builds an Aggregator. The weight set is validated here so a
// bad configuration fails at startup rather than per request.
func NewAggregator(weights WeightSet, engine *status.Engine, region geo.Region, opts ...Option) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, eris.New("scorer: status engine is required")
	}

	a := &Aggregator{
		weights: weights,
		modules: [4]module{
			{ModuleDistance, distanceModule(region)},
			{ModuleOperating, operatingModule(engine)},
			{ModuleSpecialty, specialtyModule},
			{ModuleProgram, programModule},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Weights returns the aggregator's weight set.
func (a *Aggregator) Weights() WeightSet {
	return a.weights
}

// Score runs all four modules concurrently and waits for every one of them.
// A failed or panicking module scores DefaultModuleScore and is listed in
// FailedModules. If every module fails, Score returns ErrAllModulesFailed.
func (a *Aggregator) Score(ctx context.Context, in Input) (model.ScoreBreakdown, error) {
	ctx, span := tracer.Start(ctx, "scorer.Score")
	defer span.End()
	if in.Center != nil {
		span.SetAttributes(attribute.String("center.id", in.Center.ID))
	}

	if in.Center == nil {
		err := eris.New("scorer: nil center")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ScoreBreakdown{}, err
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}

	var (
		outputs [4]ModuleOutput
		errs    [4]error
		g       errgroup.Group
	)
	for i, m := range a.modules {
		g.Go(func() error {
			outputs[i], errs[i] = runModule(ctx, m, in)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return model.ScoreBreakdown{}, eris.Wrapf(err, "scorer: center %s", in.Center.ID)
	}

	var (
		b      model.ScoreBreakdown
		scores [4]int
	)
	for i, m := range a.modules {
		if errs[i] != nil {
			scores[i] = DefaultModuleScore
			b.FailedModules = append(b.FailedModules, m.name)
			a.metrics.ModuleFailed(m.name)
			zap.L().Warn("scorer: module failed",
				zap.String("center_id", in.Center.ID),
				zap.String("module", m.name),
				zap.Error(errs[i]),
			)
			continue
		}
		scores[i] = clampScore(outputs[i].Score)
		if outputs[i].Detail != nil {
			outputs[i].Detail(&b)
		}
	}

	if len(b.FailedModules) == len(a.modules) {
		err := eris.Wrapf(ErrAllModulesFailed, "center %s", in.Center.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ScoreBreakdown{}, err
	}

	b.DistanceScore, b.OperatingScore, b.SpecialtyScore, b.ProgramScore = scores[0], scores[1], scores[2], scores[3]
	b.Total = WeightedTotal(scores[0], scores[1], scores[2], scores[3], a.weights.Select(in.Severity))
	b.Success = true

	span.SetAttributes(
		attribute.Float64("score.total", b.Total),
		attribute.Int("score.failed_modules", len(b.FailedModules)),
	)
	return b, nil
}

// runModule converts a panic into an error so one module cannot take down
// the join.
func runModule(ctx context.Context, m module, in Input) (out ModuleOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("scorer: %s module panicked: %v", m.name, r)
		}
	}()
	if m.fn == nil {
		return ModuleOutput{}, eris.Errorf("scorer: %s module not configured", m.name)
	}
	return m.fn(ctx, in)
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

func distanceModule(region geo.Region) ModuleFunc {
	return func(_ context.Context, in Input) (ModuleOutput, error) {
		m, err := geo.Measure(in.User, in.Center.Location, region)
		if err != nil {
			return ModuleOutput{}, err
		}
		return ModuleOutput{
			Score:  m.Score,
			Detail: func(b *model.ScoreBreakdown) { b.Distance = &m.Detail },
		}, nil
	}
}

func operatingModule(engine *status.Engine) ModuleFunc {
	return func(_ context.Context, in Input) (ModuleOutput, error) {
		r := engine.Evaluate(in.Center, in.At)
		return ModuleOutput{
			Score:  r.Score,
			Detail: func(b *model.ScoreBreakdown) { b.Operating = &r.Detail },
		}, nil
	}
}

func specialtyModule(_ context.Context, in Input) (ModuleOutput, error) {
	r := specialty.Score(in.Center.Staff)
	return ModuleOutput{
		Score:  r.Score,
		Detail: func(b *model.ScoreBreakdown) { b.Specialty = &r.Detail },
	}, nil
}

func programModule(_ context.Context, in Input) (ModuleOutput, error) {
	r := program.Match(in.Center.Programs, in.Profile)
	return ModuleOutput{
		Score:  r.Score,
		Detail: func(b *model.ScoreBreakdown) { b.Program = &r.Detail },
	}, nil
}

// String renders a breakdown for logs and the CLI.
func String(b model.ScoreBreakdown) string {
	return fmt.Sprintf("total=%.2f distance=%d operating=%d specialty=%d program=%d failed=%v",
		b.Total, b.DistanceScore, b.OperatingScore, b.SpecialtyScore, b.ProgramScore, b.FailedModules)
}
