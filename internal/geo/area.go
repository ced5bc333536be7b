package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusM = 6371000.0

// EstimateArea approximates the area enclosed by ring in square kilometers.
//
// It uses a latitude-weighted shoelace summation over the vertices, which is
// close enough for survey-sized polygons but is not an exact geodesic area.
// Degenerate rings (fewer than three distinct vertices, or all vertices on one
// line) yield 0.
func EstimateArea(ring orb.Ring) float64 {
	pts := openRing(ring)
	if len(uniquePoints(orb.Ring(pts))) < 3 || collinear(pts) {
		return 0
	}

	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		p1, p2 := pts[i], pts[(i+1)%n]
		dLon := toRadians(p2.Lon() - p1.Lon())
		sum += dLon * (2 + math.Sin(toRadians(p1.Lat())) + math.Sin(toRadians(p2.Lat())))
	}
	areaM2 := math.Abs(sum * earthRadiusM * earthRadiusM / 2)
	return areaM2 / 1e6
}

// FormatArea renders an area given in km² with a unit matching its magnitude.
func FormatArea(sqKm float64) string {
	switch {
	case sqKm < 0.0001:
		return fmt.Sprintf("%.1f m²", sqKm*1e6)
	case sqKm < 0.01:
		return fmt.Sprintf("%d m²", int64(math.Round(sqKm*1e6)))
	case sqKm < 1:
		return fmt.Sprintf("%.2f hectares", sqKm*100)
	default:
		return fmt.Sprintf("%.2f km²", sqKm)
	}
}

// collinear reports whether every point lies on the line through the first
// two distinct points.
func collinear(pts []orb.Point) bool {
	if len(pts) < 3 {
		return true
	}
	origin := pts[0]
	var dir orb.Point
	found := false
	for _, p := range pts[1:] {
		if !p.Equal(origin) {
			dir = orb.Point{p[0] - origin[0], p[1] - origin[1]}
			found = true
			break
		}
	}
	if !found {
		return true
	}
	scale := math.Hypot(dir[0], dir[1])
	for _, p := range pts {
		v := orb.Point{p[0] - origin[0], p[1] - origin[1]}
		cross := dir[0]*v[1] - dir[1]*v[0]
		if math.Abs(cross) > 1e-12*scale*math.Max(1, math.Hypot(v[0], v[1])) {
			return false
		}
	}
	return true
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
