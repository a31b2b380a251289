package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Region
	}{
		{"", RegionDefault},
		{"default", RegionDefault},
		{"DENSE_URBAN", RegionDenseUrban},
		{" suburban ", RegionSuburban},
		{" Dense_Urban ", RegionDenseUrban},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRegion("rural")
	assert.Error(t, err)
}

func TestRoadDistance(t *testing.T) {
	tests := []struct {
		name     string
		straight int
		region   Region
		want     int
	}{
		{"dense urban", 1000, RegionDenseUrban, 1400},
		{"suburban", 1000, RegionSuburban, 1200},
		{"default", 1000, RegionDefault, 1300},
		{"unknown falls back to default", 1000, Region("rural"), 1300},
		{"rounds", 333, RegionDefault, 433},
		{"zero", 0, RegionDenseUrban, 0},
		{"negative clamps", -50, RegionDefault, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoadDistance(tt.straight, tt.region))
		})
	}
}
