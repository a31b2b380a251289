package geo

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Region is the road-network density class used for road-distance correction.
type Region string

// Region classes.
const (
	RegionDenseUrban Region = "dense_urban"
	RegionSuburban   Region = "suburban"
	RegionDefault    Region = "default"
)

// Road correction factors applied to straight-line meters.
const (
	denseUrbanFactor = 1.4
	suburbanFactor   = 1.2
	defaultFactor    = 1.3
)

// ParseRegion maps a configured region name to a Region. The empty string
// maps to RegionDefault.
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RegionDefault, nil
	case RegionDenseUrban, RegionSuburban, RegionDefault:
		return r, nil
	default:
		return RegionDefault, eris.Errorf("geo: unknown region %q", s)
	}
}

// Factor returns the road correction multiplier for the region. Unknown
// regions use the default factor.
func (r Region) Factor() float64 {
	switch r {
	case RegionDenseUrban:
		return denseUrbanFactor
	case RegionSuburban:
		return suburbanFactor
	default:
		return defaultFactor
	}
}

// RoadDistance converts a straight-line distance to an approximate road
// distance. Negative inputs clamp to 0.
func RoadDistance(straightMeters int, r Region) int {
	if straightMeters < 0 {
		straightMeters = 0
	}
	return int(math.Round(float64(straightMeters) * r.Factor()))
}
