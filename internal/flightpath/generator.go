// Package flightpath synthesizes survey flight paths over a polygon.
package flightpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"surveyops/internal/geo"
)

var (
	// ErrDegeneratePolygon is returned when the ring has fewer than three
	// distinct vertices or no extent in one axis.
	ErrDegeneratePolygon = errors.New("degenerate polygon")
	// ErrUnknownPattern is returned for pattern names other than grid,
	// perimeter and crosshatch.
	ErrUnknownPattern = errors.New("unknown flight pattern")
)

// Pattern selects how the survey area is covered.
type Pattern string

const (
	PatternGrid       Pattern = "grid"
	PatternPerimeter  Pattern = "perimeter"
	PatternCrosshatch Pattern = "crosshatch"
)

// ParsePattern maps a case-insensitive name to a Pattern. An empty name
// selects the grid pattern.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(strings.ToLower(strings.TrimSpace(s))) {
	case "", PatternGrid:
		return PatternGrid, nil
	case PatternPerimeter:
		return PatternPerimeter, nil
	case PatternCrosshatch:
		return PatternCrosshatch, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// Waypoint is a single position of the flight path.
type Waypoint struct {
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Altitude float64 `json:"altitude"`
}

// Point returns the waypoint as an orb point.
func (w Waypoint) Point() orb.Point { return orb.Point{w.Lng, w.Lat} }

// Options tune the path resolution. The values are presentation constants
// rather than coverage guarantees.
type Options struct {
	// Resolution is the number of grid steps between minLat and maxLat.
	Resolution int
	// PerimeterPasses is the number of inner rings after the outer trace.
	PerimeterPasses int
	// PerimeterShrink is the fraction each inner pass is scaled by.
	PerimeterShrink float64
	// CrosshatchLines is the number of lines in each sweep direction.
	CrosshatchLines int
}

// DefaultOptions returns the resolution used when no options are given.
func DefaultOptions() Options {
	return Options{
		Resolution:      10,
		PerimeterPasses: 3,
		PerimeterShrink: 0.2,
		CrosshatchLines: 5,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithResolution sets the grid step count.
func WithResolution(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Resolution = n
		}
	}
}

// WithPerimeterPasses sets the number of inner passes and the per-pass shrink.
func WithPerimeterPasses(passes int, shrink float64) Option {
	return func(o *Options) {
		if passes >= 0 {
			o.PerimeterPasses = passes
		}
		if shrink > 0 && shrink < 1 {
			o.PerimeterShrink = shrink
		}
	}
}

// WithCrosshatchLines sets the line count per sweep direction.
func WithCrosshatchLines(n int) Option {
	return func(o *Options) {
		if n >= 2 {
			o.CrosshatchLines = n
		}
	}
}

// WithOptions replaces all options at once, keeping defaults for zero fields.
func WithOptions(in Options) Option {
	return func(o *Options) {
		WithResolution(in.Resolution)(o)
		WithPerimeterPasses(in.PerimeterPasses, in.PerimeterShrink)(o)
		WithCrosshatchLines(in.CrosshatchLines)(o)
	}
}

// Generate builds the flight path for ring using pattern at the given
// altitude. The first and last waypoints are always the ring's first vertex.
func Generate(ring orb.Ring, pattern Pattern, altitude float64, opts ...Option) ([]Waypoint, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	box, err := geo.BoundingBox(ring)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDegeneratePolygon, err)
	}
	if box.Width() == 0 || box.Height() == 0 {
		return nil, fmt.Errorf("%w: zero extent bounding box", ErrDegeneratePolygon)
	}

	var body []Waypoint
	switch pattern {
	case PatternGrid:
		body = gridSweep(box, altitude, o.Resolution)
	case PatternPerimeter:
		body = perimeterSpiral(ring, box, altitude, o.PerimeterPasses, o.PerimeterShrink)
	case PatternCrosshatch:
		body = crosshatch(box, altitude, o.CrosshatchLines)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}

	home := Waypoint{Lng: ring[0].Lon(), Lat: ring[0].Lat(), Altitude: altitude}
	path := make([]Waypoint, 0, len(body)+4)
	path = append(path, home)
	if pattern == PatternCrosshatch {
		path = appendAxisLeg(path, body[0])
	}
	for _, wp := range body {
		path = appendDistinct(path, wp)
	}
	if pattern == PatternCrosshatch {
		path = appendAxisLeg(path, home)
	}
	path = appendDistinct(path, home)
	return path, nil
}

// appendAxisLeg inserts an elbow so the leg from the last waypoint to to
// runs along lines of constant latitude and longitude. The elbow shares a
// coordinate with each end, so it stays inside their bounding box.
func appendAxisLeg(path []Waypoint, to Waypoint) []Waypoint {
	from := path[len(path)-1]
	if from.Lng == to.Lng || from.Lat == to.Lat {
		return path
	}
	return appendDistinct(path, Waypoint{Lng: to.Lng, Lat: from.Lat, Altitude: to.Altitude})
}

// Bounds returns the bounding box covered by a path.
func Bounds(path []Waypoint) geo.Box {
	if len(path) == 0 {
		return geo.Box{}
	}
	b := geo.Box{MinLng: path[0].Lng, MaxLng: path[0].Lng, MinLat: path[0].Lat, MaxLat: path[0].Lat}
	for _, wp := range path[1:] {
		b.MinLng = min(b.MinLng, wp.Lng)
		b.MaxLng = max(b.MaxLng, wp.Lng)
		b.MinLat = min(b.MinLat, wp.Lat)
		b.MaxLat = max(b.MaxLat, wp.Lat)
	}
	return b
}

// LineString converts the path into an orb line string.
func LineString(path []Waypoint) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, wp := range path {
		ls[i] = wp.Point()
	}
	return ls
}

func appendDistinct(path []Waypoint, wp Waypoint) []Waypoint {
	if n := len(path); n > 0 && path[n-1] == wp {
		return path
	}
	return append(path, wp)
}
