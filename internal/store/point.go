package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/centerrank/internal/model"
)

// encodePoint renders a coordinate as an SRID 4326 EWKB point (X=lon, Y=lat).
func encodePoint(c model.Coordinate) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

// decodePoint parses an EWKB point as returned by ST_AsEWKB.
func decodePoint(data []byte) (model.Coordinate, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "store: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return model.Coordinate{}, eris.Errorf("store: expected point, got %T", g)
	}
	if p.Empty() {
		return model.Coordinate{}, eris.New("store: empty point")
	}
	return model.Coordinate{Latitude: p.Y(), Longitude: p.X()}, nil
}
