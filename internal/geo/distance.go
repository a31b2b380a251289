// Package geo scores the geographic proximity of a center to a user.
package geo

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/centerrank/internal/model"
)

const (
	earthRadiusMeters = 6_371_000.0

	// maxScoredMeters is the corrected distance at which the score reaches 0.
	maxScoredMeters = 10_000.0

	// walkMetersPerMinute is the fixed walking pace used for display.
	walkMetersPerMinute = 80.0
)

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = eris.New("geo: invalid coordinate")

// ValidateCoordinate rejects latitudes outside [-90,90] and longitudes
// outside [-180,180]. NaN values are rejected too.
func ValidateCoordinate(c model.Coordinate) error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude %v out of range", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude %v out of range", c.Longitude)
	}
	return nil
}

// HaversineMeters returns the great-circle distance between two points,
// rounded to whole meters.
func HaversineMeters(a, b model.Coordinate) int {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return int(math.Round(earthRadiusMeters * c))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Score maps a corrected distance to 0-100 with linear decay: 0 m scores 100,
// 10 km and beyond score 0.
func Score(correctedMeters int) int {
	if correctedMeters <= 0 {
		return 100
	}
	d := float64(correctedMeters)
	if d >= maxScoredMeters {
		return 0
	}
	return int(math.Round(100 - d/maxScoredMeters*100))
}

// FormatDistance renders meters as "750m" below 1 km and "2.3km" above.
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", meters)
	}
	return fmt.Sprintf("%.1fkm", float64(meters)/1000)
}

// WalkMinutes returns the walking time at 80 m/min, rounded up, minimum 1.
func WalkMinutes(meters int) int {
	m := int(math.Ceil(float64(meters) / walkMetersPerMinute))
	if m < 1 {
		return 1
	}
	return m
}

// FormatWalk renders a walking time, e.g. "12 min walk" or "1 h 5 min walk".
func FormatWalk(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min walk", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%d h walk", h)
	}
	return fmt.Sprintf("%d h %d min walk", h, m)
}

// Measurement is the outcome of scoring one user/center pair.
type Measurement struct {
	Score  int
	Detail model.DistanceDetail
}

// Measure validates both coordinates, then computes the straight and
// road-corrected distances, the score and the display text.
func Measure(user, center model.Coordinate, region Region) (Measurement, error) {
	if err := ValidateCoordinate(user); err != nil {
		return Measurement{}, eris.Wrap(err, "geo: user location")
	}
	if err := ValidateCoordinate(center); err != nil {
		return Measurement{}, eris.Wrap(err, "geo: center location")
	}

	straight := HaversineMeters(user, center)
	road := RoadDistance(straight, region)
	walk := WalkMinutes(road)

	return Measurement{
		Score: Score(road),
		Detail: model.DistanceDetail{
			StraightMeters: straight,
			RoadMeters:     road,
			DistanceText:   FormatDistance(road),
			WalkMinutes:    walk,
			WalkText:       FormatWalk(walk),
		},
	}, nil
}
