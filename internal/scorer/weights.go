// Package scorer combines the distance, operating, specialty and program
// scores of a center into one weighted total.
package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/model"
)

// weightTolerance is the allowed deviation of a weight sum from 1.0.
const weightTolerance = 1e-4

// ErrInvalidWeights is returned when a weight configuration is unusable.
var ErrInvalidWeights = eris.New("scorer: invalid weights")

// DefaultWeights apply when no assessment severity is present.
func DefaultWeights() config.ScoringWeights {
	return config.ScoringWeights{Distance: 0.35, Operating: 0.25, Specialty: 0.20, Program: 0.20}
}

// AssessmentWeights apply when a severity code is present. Only distance and
// program shift relative to the defaults; operating and specialty keep 0.45
// between them, so distance and program share the remaining 0.55.
func AssessmentWeights() config.ScoringWeights {
	return config.ScoringWeights{Distance: 0.25, Operating: 0.25, Specialty: 0.20, Program: 0.30}
}

// ValidateWeights checks that every weight is a non-negative number and the
// sum is 1.0.
func ValidateWeights(w config.ScoringWeights) error {
	var errs []string
	for _, f := range w.Fields() {
		switch {
		case math.IsNaN(f.Value) || math.IsInf(f.Value, 0):
			errs = append(errs, fmt.Sprintf("%s must be a finite number", f.Name))
		case f.Value < 0:
			errs = append(errs, fmt.Sprintf("%s must be >= 0", f.Name))
		}
	}
	if sum := w.Sum(); math.IsNaN(sum) || math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.4f", sum))
	}
	if len(errs) > 0 {
		return eris.Wrap(ErrInvalidWeights, strings.Join(errs, "; "))
	}
	return nil
}

// WeightSet is the pair of weight configurations selected by severity.
type WeightSet struct {
	Default    config.ScoringWeights `json:"default"`
	Assessment config.ScoringWeights `json:"assessment"`
}

// DefaultWeightSet returns the built-in weight pair.
func DefaultWeightSet() WeightSet {
	return WeightSet{Default: DefaultWeights(), Assessment: AssessmentWeights()}
}

// WeightSetFromConfig reads the weight pair from config, falling back to the
// built-in weights for any set left at zero.
func WeightSetFromConfig(cfg config.ScoringConfig) WeightSet {
	ws := WeightSet{Default: cfg.DefaultWeights, Assessment: cfg.AssessmentWeights}
	if ws.Default == (config.ScoringWeights{}) {
		ws.Default = DefaultWeights()
	}
	if ws.Assessment == (config.ScoringWeights{}) {
		ws.Assessment = AssessmentWeights()
	}
	return ws
}

// Validate checks both weight configurations.
func (ws WeightSet) Validate() error {
	if err := ValidateWeights(ws.Default); err != nil {
		return eris.Wrap(err, "default weights")
	}
	if err := ValidateWeights(ws.Assessment); err != nil {
		return eris.Wrap(err, "assessment weights")
	}
	return nil
}

// Select returns the assessment weights when a severity is present and the
// default weights otherwise.
func (ws WeightSet) Select(severity model.SeverityCode) config.ScoringWeights {
	if severity.Present() {
		return ws.Assessment
	}
	return ws.Default
}

// Fingerprint returns a short stable hash of the weights, for cache keys.
func (ws WeightSet) Fingerprint() string {
	data, err := json.Marshal(ws)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// WeightedTotal combines module scores under w, rounded to two decimals.
func WeightedTotal(distance, operating, specialty, program int, w config.ScoringWeights) float64 {
	total := float64(distance)*w.Distance +
		float64(operating)*w.Operating +
		float64(specialty)*w.Specialty +
		float64(program)*w.Program
	return math.Round(total*100) / 100
}
