package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
centers:
  - id: c-near
    name: Jung-gu Mental Health Center
    location: {latitude: 37.5700, longitude: 126.9820}
    address: 110 Sejong-daero
    hours:
      - {day_of_week: 1, open_time: "09:00", close_time: "18:00", is_open: true}
    staff:
      - {label: psychiatrist, count: 2}
    programs:
      - {category: depression, target_group: adult, active: true}
  - id: c-inactive
    name: Retired
    active: false
    location: {latitude: 37.5670, longitude: 126.9790}
  - id: c-nowhere
    name: No Location
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "centers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFixtures(t *testing.T) {
	centers, err := LoadFixtures(writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	require.Len(t, centers, 2)

	assert.Equal(t, "c-near", centers[0].ID)
	assert.True(t, centers[0].Active)
	assert.Equal(t, "09:00", centers[0].Hours[0].OpenTime)
	assert.Equal(t, 2, centers[0].Staff[0].Count)
	assert.False(t, centers[1].Active)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing id", "centers:\n  - name: x\n", "without id"},
		{"duplicate id", "centers:\n  - id: a\n  - id: a\n", "duplicate center id a"},
		{"bad yaml", "centers: [", "parse fixtures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixtures(writeFixture(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFileStore_FetchAndGet(t *testing.T) {
	s, err := NewFile(writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	ctx := context.Background()

	centers, err := s.FetchActiveCentersNear(ctx, cityHall, 3000)
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.Equal(t, "c-near", centers[0].ID)

	c, err := s.GetCenter(ctx, "c-inactive")
	require.NoError(t, err)
	assert.Equal(t, "Retired", c.Name)

	_, err = s.GetCenter(ctx, "c-nowhere")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_SaveCentersCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	s, err := NewFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveCenters(ctx, sampleCenters()))

	reloaded, err := NewFile(path)
	require.NoError(t, err)
	centers, err := reloaded.FetchActiveCentersNear(ctx, cityHall, 20000)
	require.NoError(t, err)
	require.Len(t, centers, 2)
	assert.Equal(t, "c-far", centers[0].ID)
	assert.Equal(t, sampleCenters()[0].Programs, centers[1].Programs)

	closed, err := reloaded.GetCenter(ctx, "c-closed")
	require.NoError(t, err)
	assert.False(t, closed.Active)
}

func TestFileStore_RecordRecommendations(t *testing.T) {
	s, err := NewFile(writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	assert.NoError(t, s.RecordRecommendations(context.Background(), nil, cityHall, "s"))
	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Close())
}
