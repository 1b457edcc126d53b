package territory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// decode returns an empty collection for blank or null input.
func decode(raw []byte) (*geojson.FeatureCollection, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == `""` {
		return geojson.NewFeatureCollection(), nil
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(s))
	if err == nil {
		return fc, nil
	}
	// Single features and bare geometries are accepted and wrapped.
	if f, ferr := geojson.UnmarshalFeature([]byte(s)); ferr == nil && f.Geometry != nil {
		return geojson.NewFeatureCollection().Append(f), nil
	}
	if g, gerr := geojson.UnmarshalGeometry([]byte(s)); gerr == nil && g.Geometry() != nil {
		return geojson.NewFeatureCollection().Append(geojson.NewFeature(g.Geometry())), nil
	}
	return nil, fmt.Errorf("decode territory: %w", err)
}

func encode(fc *geojson.FeatureCollection) ([]byte, error) {
	return json.Marshal(fc)
}

func isEmpty(fc *geojson.FeatureCollection) bool {
	if fc == nil {
		return true
	}
	for _, f := range fc.Features {
		if f != nil && f.Geometry != nil {
			return false
		}
	}
	return true
}

// sameGeometry compares feature geometries in order; properties are ignored.
func sameGeometry(a, b *geojson.FeatureCollection) bool {
	if isEmpty(a) || isEmpty(b) {
		return isEmpty(a) == isEmpty(b)
	}
	if len(a.Features) != len(b.Features) {
		return false
	}
	for i := range a.Features {
		ga, gb := a.Features[i].Geometry, b.Features[i].Geometry
		if ga == nil || gb == nil {
			if ga != gb {
				return false
			}
			continue
		}
		if !orb.Equal(ga, gb) {
			return false
		}
	}
	return true
}

// captureBuffer is a square of +/- radius degrees around p.
func captureBuffer(p orb.Point, radius float64) orb.Polygon {
	return p.Bound().Pad(radius).ToPolygon()
}
