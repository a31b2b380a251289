package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/centerrank/internal/model"
)

func TestPointRoundTrip(t *testing.T) {
	in := model.Coordinate{Latitude: 37.5665, Longitude: 126.9780}

	data, err := encodePoint(in)
	require.NoError(t, err)

	out, err := decodePoint(data)
	require.NoError(t, err)
	assert.InDelta(t, in.Latitude, out.Latitude, 1e-9)
	assert.InDelta(t, in.Longitude, out.Longitude, 1e-9)
}

func TestDecodePoint_Garbage(t *testing.T) {
	_, err := decodePoint([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestDecodePoint_NotAPoint(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}).SetSRID(4326)
	data, err := ewkb.Marshal(line, ewkb.NDR)
	require.NoError(t, err)

	_, err = decodePoint(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected point")
}
