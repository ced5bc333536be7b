package flightpath

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"surveyops/internal/geo"
)

// gridSweep returns a boustrophedon sweep: scan lines from minLat to maxLat,
// alternating west-to-east and east-to-west.
func gridSweep(box geo.Box, alt float64, steps int) []Waypoint {
	if steps < 1 {
		steps = 1
	}
	var out []Waypoint
	for _, line := range gridLines(box, alt, steps) {
		out = append(out, line[0], line[1])
	}
	return out
}

func gridLines(box geo.Box, alt float64, steps int) [][2]Waypoint {
	lines := make([][2]Waypoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		lat := lerp(box.MinLat, box.MaxLat, i, steps)
		west := Waypoint{Lng: box.MinLng, Lat: lat, Altitude: alt}
		east := Waypoint{Lng: box.MaxLng, Lat: lat, Altitude: alt}
		if i%2 == 0 {
			lines = append(lines, [2]Waypoint{west, east})
		} else {
			lines = append(lines, [2]Waypoint{east, west})
		}
	}
	return lines
}

// perimeterSpiral traces the ring itself, then successively smaller copies
// scaled toward the centroid.
func perimeterSpiral(ring orb.Ring, box geo.Box, alt float64, passes int, shrink float64) []Waypoint {
	out := make([]Waypoint, 0, len(ring)*(passes+1))
	for _, p := range ring {
		out = append(out, Waypoint{Lng: p.Lon(), Lat: p.Lat(), Altitude: alt})
	}

	center, area := planar.CentroidArea(orb.Polygon{ring})
	if area == 0 {
		center = box.Center()
	}
	for i := 1; i <= passes; i++ {
		factor := 1 - float64(i)*shrink
		if factor <= 0 {
			break
		}
		for _, p := range ring {
			out = append(out, Waypoint{
				Lng:      center.Lon() + (p.Lon()-center.Lon())*factor,
				Lat:      center.Lat() + (p.Lat()-center.Lat())*factor,
				Altitude: alt,
			})
		}
	}
	return out
}

// crosshatch sweeps n horizontal lines, then n vertical lines, then flies
// both main diagonals of the bounding box. Connectors between lines run
// along the box edges. Generate routes the legs to and from home through an
// elbow, so the two diagonals are the only oblique legs of the full path.
func crosshatch(box geo.Box, alt float64, n int) []Waypoint {
	if n < 2 {
		n = 2
	}
	wp := func(lng, lat float64) Waypoint { return Waypoint{Lng: lng, Lat: lat, Altitude: alt} }
	var out []Waypoint

	for i := 0; i < n; i++ {
		lat := lerp(box.MinLat, box.MaxLat, i, n-1)
		if i%2 == 0 {
			out = append(out, wp(box.MinLng, lat), wp(box.MaxLng, lat))
		} else {
			out = append(out, wp(box.MaxLng, lat), wp(box.MinLng, lat))
		}
	}

	// vertical sweep starts on the side where the horizontal sweep ended
	fromEast := (n-1)%2 == 0
	for j := 0; j < n; j++ {
		lng := lerp(box.MinLng, box.MaxLng, j, n-1)
		if fromEast {
			lng = lerp(box.MaxLng, box.MinLng, j, n-1)
		}
		if j%2 == 0 {
			out = append(out, wp(lng, box.MaxLat), wp(lng, box.MinLat))
		} else {
			out = append(out, wp(lng, box.MinLat), wp(lng, box.MaxLat))
		}
	}

	cur := out[len(out)-1]
	oppLng := box.MinLng
	if cur.Lng == box.MinLng {
		oppLng = box.MaxLng
	}
	oppLat := box.MinLat
	if cur.Lat == box.MinLat {
		oppLat = box.MaxLat
	}
	out = append(out,
		wp(oppLng, oppLat),
		wp(cur.Lng, oppLat),
		wp(oppLng, cur.Lat),
	)
	return out
}

// lerp returns the i-th of steps evenly spaced values between a and b, with
// the last value pinned to b.
func lerp(a, b float64, i, steps int) float64 {
	if i >= steps {
		return b
	}
	return a + (b-a)*float64(i)/float64(steps)
}
