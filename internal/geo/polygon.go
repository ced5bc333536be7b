// Survey polygon helpers built on orb rings
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ErrInvalidGeometry is returned for malformed or degenerate survey rings.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Box is an axis-aligned longitude/latitude bounding box.
type Box struct {
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
}

// Width returns the longitudinal extent of the box in degrees.
func (b Box) Width() float64 { return b.MaxLng - b.MinLng }

// Height returns the latitudinal extent of the box in degrees.
func (b Box) Height() float64 { return b.MaxLat - b.MinLat }

// Center returns the midpoint of the box.
func (b Box) Center() orb.Point {
	return orb.Point{(b.MinLng + b.MaxLng) / 2, (b.MinLat + b.MaxLat) / 2}
}

// BoundingBox scans the ring vertices and returns their extent.
func BoundingBox(ring orb.Ring) (Box, error) {
	if len(uniquePoints(ring)) < 3 {
		return Box{}, fmt.Errorf("%w: fewer than 3 distinct vertices", ErrInvalidGeometry)
	}
	b := ring.Bound()
	return Box{
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
	}, nil
}

// Validate checks that ring is a closed GeoJSON ring with at least three
// distinct, in-range vertices.
func Validate(ring orb.Ring) error {
	if len(ring) < 4 {
		return fmt.Errorf("%w: ring needs at least 4 positions, got %d", ErrInvalidGeometry, len(ring))
	}
	if !ring.Closed() {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}
	for i, p := range ring {
		lng, lat := p.Lon(), p.Lat()
		if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
			return fmt.Errorf("%w: position %d is not finite", ErrInvalidGeometry, i)
		}
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("%w: position %d out of range (%f, %f)", ErrInvalidGeometry, i, lng, lat)
		}
	}
	if len(uniquePoints(ring)) < 3 {
		return fmt.Errorf("%w: fewer than 3 distinct vertices", ErrInvalidGeometry)
	}
	return nil
}

// ParsePolygon decodes a GeoJSON Polygon geometry, or a Feature wrapping one,
// as emitted by the map widget and returns its outer ring.
func ParsePolygon(data []byte) (orb.Ring, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var g orb.Geometry
	switch probe.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		g = f.Geometry
	default:
		gj, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		g = gj.Geometry()
	}

	poly, ok := g.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("%w: expected a Polygon, got %s", ErrInvalidGeometry, probe.Type)
	}
	ring := poly[0]
	if err := Validate(ring); err != nil {
		return nil, err
	}
	return ring, nil
}

// PathLength returns the haversine length of the line in meters.
func PathLength(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	return orbgeo.LengthHaversine(ls)
}

// openRing drops the closing position of a closed ring.
func openRing(ring orb.Ring) []orb.Point {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		return ring[:len(ring)-1]
	}
	return ring
}

func uniquePoints(ring orb.Ring) []orb.Point {
	seen := make(map[orb.Point]struct{}, len(ring))
	var out []orb.Point
	for _, p := range ring {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
