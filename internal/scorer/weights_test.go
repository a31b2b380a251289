package scorer

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/model"
)

func TestWeightConfigurationsSumToOne(t *testing.T) {
	ws := DefaultWeightSet()
	for _, sev := range []model.SeverityCode{model.SeverityNone, model.SeverityLow, model.SeverityMid, model.SeverityHigh} {
		w := ws.Select(sev)
		assert.InDelta(t, 1.0, w.Sum(), weightTolerance, "severity %q", sev)
		assert.NoError(t, ValidateWeights(w))
	}
}

func TestShippedWeightsSumToOne(t *testing.T) {
	assert.NoError(t, DefaultWeightSet().Validate())
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
	assert.InDelta(t, 1.0, AssessmentWeights().Sum(), 1e-9)

	a := AssessmentWeights()
	assert.InDelta(t, 0.25, a.Distance, 1e-9)
	assert.InDelta(t, 0.30, a.Program, 1e-9)
	assert.InDelta(t, 0.55, a.Distance+a.Program, 1e-9)
}

func TestSelect(t *testing.T) {
	ws := DefaultWeightSet()

	assert.Equal(t, DefaultWeights(), ws.Select(model.SeverityNone))
	for _, sev := range []model.SeverityCode{model.SeverityLow, model.SeverityMid, model.SeverityHigh} {
		w := ws.Select(sev)
		assert.Equal(t, AssessmentWeights(), w)
	}
}

func TestAssessmentShiftsOnlyDistanceAndProgram(t *testing.T) {
	d, a := DefaultWeights(), AssessmentWeights()
	assert.Equal(t, d.Operating, a.Operating)
	assert.Equal(t, d.Specialty, a.Specialty)
	assert.NotEqual(t, d.Distance, a.Distance)
	assert.NotEqual(t, d.Program, a.Program)
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		w       config.ScoringWeights
		wantErr string
	}{
		{"default", DefaultWeights(), ""},
		{"within tolerance", config.ScoringWeights{Distance: 0.35005, Operating: 0.25, Specialty: 0.2, Program: 0.2}, ""},
		{"sum too high", config.ScoringWeights{Distance: 0.4, Operating: 0.25, Specialty: 0.2, Program: 0.2}, "must sum to 1.0"},
		{"negative", config.ScoringWeights{Distance: 1.2, Operating: -0.2}, "operating must be >= 0"},
		{"zero", config.ScoringWeights{}, "got 0.0000"},
		{"nan", config.ScoringWeights{Distance: math.NaN(), Operating: 0.25, Specialty: 0.2, Program: 0.2}, "distance must be a finite number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.w)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidWeights))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWeights_StableOrder(t *testing.T) {
	w := config.ScoringWeights{Distance: -0.1, Operating: -0.2, Specialty: -0.3, Program: -0.4}
	first := ValidateWeights(w).Error()
	for range 20 {
		assert.Equal(t, first, ValidateWeights(w).Error())
	}
	assert.Less(t, strings.Index(first, "distance"), strings.Index(first, "program"))
}

func TestWeightSetFromConfig(t *testing.T) {
	ws := WeightSetFromConfig(config.ScoringConfig{})
	assert.Equal(t, DefaultWeightSet(), ws)

	custom := config.ScoringWeights{Distance: 0.5, Operating: 0.2, Specialty: 0.2, Program: 0.1}
	ws = WeightSetFromConfig(config.ScoringConfig{DefaultWeights: custom})
	assert.Equal(t, custom, ws.Default)
	assert.Equal(t, AssessmentWeights(), ws.Assessment)
	assert.NoError(t, ws.Validate())
}

func TestWeightSetValidate(t *testing.T) {
	ws := DefaultWeightSet()
	ws.Assessment.Program = 0.5
	err := ws.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessment weights")
}

func TestFingerprint(t *testing.T) {
	a := DefaultWeightSet()
	b := DefaultWeightSet()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.Default.Distance = 0.36
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestWeightedTotal(t *testing.T) {
	assert.InDelta(t, 96.0, WeightedTotal(100, 100, 100, 80, DefaultWeights()), 1e-9)
	assert.InDelta(t, 50.0, WeightedTotal(50, 50, 50, 50, AssessmentWeights()), 1e-9)
	assert.InDelta(t, 34.25, WeightedTotal(33, 34, 35, 36, DefaultWeights()), 1e-9)
}
