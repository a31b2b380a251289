package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/centerrank/internal/model"
)

var (
	seoulCityHall = model.Coordinate{Latitude: 37.5663, Longitude: 126.9779}
	gangnamStn    = model.Coordinate{Latitude: 37.4979, Longitude: 127.0276}
)

func TestHaversineMeters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, HaversineMeters(seoulCityHall, seoulCityHall))

	d := HaversineMeters(seoulCityHall, gangnamStn)
	assert.InDelta(t, 8800, d, 200)
	assert.Equal(t, d, HaversineMeters(gangnamStn, seoulCityHall))

	// One degree of latitude is ~111.2 km.
	oneDeg := HaversineMeters(model.Coordinate{}, model.Coordinate{Latitude: 1})
	assert.InDelta(t, 111195, oneDeg, 5)
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		meters int
		want   int
	}{
		{-10, 100},
		{0, 100},
		{1, 100},
		{2500, 75},
		{5000, 50},
		{7449, 26},
		{9999, 0},
		{10000, 0},
		{25000, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.meters), "meters=%d", tt.meters)
	}
}

func TestScore_NonIncreasing(t *testing.T) {
	t.Parallel()

	prev := Score(0)
	for m := 0; m <= 12000; m += 37 {
		s := Score(m)
		assert.LessOrEqual(t, s, prev, "meters=%d", m)
		assert.GreaterOrEqual(t, s, 0)
		prev = s
	}
}

func TestValidateCoordinate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		coord model.Coordinate
		ok    bool
	}{
		{"origin", model.Coordinate{}, true},
		{"seoul", seoulCityHall, true},
		{"poles and antimeridian", model.Coordinate{Latitude: -90, Longitude: 180}, true},
		{"lat too high", model.Coordinate{Latitude: 90.0001}, false},
		{"lat too low", model.Coordinate{Latitude: -91}, false},
		{"lon too high", model.Coordinate{Longitude: 181}, false},
		{"lon too low", model.Coordinate{Longitude: -180.5}, false},
		{"nan", model.Coordinate{Latitude: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateCoordinate(tt.coord)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCoordinate))
		})
	}
}

func TestFormatDistance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0m", FormatDistance(0))
	assert.Equal(t, "750m", FormatDistance(750))
	assert.Equal(t, "1.0km", FormatDistance(1000))
	assert.Equal(t, "2.3km", FormatDistance(2300))
	assert.Equal(t, "12.5km", FormatDistance(12490))
}

func TestWalkMinutes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, WalkMinutes(0))
	assert.Equal(t, 1, WalkMinutes(80))
	assert.Equal(t, 2, WalkMinutes(81))
	assert.Equal(t, 10, WalkMinutes(800))
}

func TestFormatWalk(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12 min walk", FormatWalk(12))
	assert.Equal(t, "1 h walk", FormatWalk(60))
	assert.Equal(t, "1 h 5 min walk", FormatWalk(65))
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	m, err := Measure(seoulCityHall, seoulCityHall, RegionDefault)
	require.NoError(t, err)
	assert.Equal(t, 100, m.Score)
	assert.Equal(t, 0, m.Detail.StraightMeters)
	assert.Equal(t, 0, m.Detail.RoadMeters)
	assert.Equal(t, "0m", m.Detail.DistanceText)
	assert.Equal(t, 1, m.Detail.WalkMinutes)

	m, err = Measure(seoulCityHall, gangnamStn, RegionDefault)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Score, "8.8km straight is beyond 10km by road")
	assert.Greater(t, m.Detail.RoadMeters, m.Detail.StraightMeters)
}

func TestMeasure_InvalidCoordinate(t *testing.T) {
	t.Parallel()

	_, err := Measure(model.Coordinate{Latitude: 100}, seoulCityHall, RegionDefault)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))

	_, err = Measure(seoulCityHall, model.Coordinate{Longitude: 200}, RegionDefault)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))
}
