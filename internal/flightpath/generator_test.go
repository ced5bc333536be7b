package flightpath

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"surveyops/internal/geo"
)

var square = orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}

func TestGenerateClosedLoop(t *testing.T) {
	ring := orb.Ring{{16.30, 48.10}, {16.34, 48.11}, {16.33, 48.14}, {16.29, 48.12}, {16.30, 48.10}}
	for _, p := range []Pattern{PatternGrid, PatternPerimeter, PatternCrosshatch} {
		path, err := Generate(ring, p, 80)
		if err != nil {
			t.Fatalf("%s: Generate returned error: %v", p, err)
		}
		if len(path) < 2 {
			t.Fatalf("%s: path too short: %d", p, len(path))
		}
		home := Waypoint{Lng: 16.30, Lat: 48.10, Altitude: 80}
		if path[0] != home || path[len(path)-1] != home {
			t.Errorf("%s: path not closed at home: first=%+v last=%+v", p, path[0], path[len(path)-1])
		}
		for i, wp := range path {
			if wp.Altitude != 80 {
				t.Fatalf("%s: waypoint %d altitude %f", p, i, wp.Altitude)
			}
		}
	}
}

func TestGridScenarioSquare(t *testing.T) {
	path, err := Generate(square, PatternGrid, 50)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := geo.Box{MinLng: 0, MaxLng: 1, MinLat: 0, MaxLat: 1}
	if got := Bounds(path); got != want {
		t.Fatalf("bounds = %+v, want %+v", got, want)
	}
	home := Waypoint{Lng: 0, Lat: 0, Altitude: 50}
	if path[0] != home || path[len(path)-1] != home {
		t.Fatalf("expected path to start and end at %+v", home)
	}
}

func TestGridAlternatesDirection(t *testing.T) {
	box := geo.Box{MinLng: 10, MaxLng: 11, MinLat: 45, MaxLat: 45.5}
	lines := gridLines(box, 30, 7)
	if len(lines) != 8 {
		t.Fatalf("expected 8 scan lines, got %d", len(lines))
	}
	for i := 0; i+1 < len(lines); i++ {
		d1 := lines[i][1].Lng - lines[i][0].Lng
		d2 := lines[i+1][1].Lng - lines[i+1][0].Lng
		if d1*d2 >= 0 {
			t.Errorf("lines %d and %d share direction (%f, %f)", i, i+1, d1, d2)
		}
		if lines[i+1][0].Lat <= lines[i][0].Lat {
			t.Errorf("line %d does not advance north", i+1)
		}
	}
	if lines[0][0].Lat != box.MinLat || lines[len(lines)-1][0].Lat != box.MaxLat {
		t.Errorf("scan lines must span minLat..maxLat")
	}
}

func TestGridWaypointCountBounded(t *testing.T) {
	small := orb.Ring{{0, 0}, {0, 0.001}, {0.001, 0.001}, {0.001, 0}, {0, 0}}
	large := orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	a, err := Generate(small, PatternGrid, 50, WithResolution(6))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(large, PatternGrid, 50, WithResolution(6))
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("waypoint count depends on polygon size: %d vs %d", len(a), len(b))
	}
	if len(a) > 2*(6+1)+2 {
		t.Fatalf("too many waypoints: %d", len(a))
	}
}

func TestPerimeterTracesRingFirst(t *testing.T) {
	ring := orb.Ring{{2, 2}, {2, 4}, {5, 4}, {6, 1}, {2, 2}}
	path, err := Generate(ring, PatternPerimeter, 120, WithPerimeterPasses(4, 0.2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, p := range ring {
		want := Waypoint{Lng: p.Lon(), Lat: p.Lat(), Altitude: 120}
		if path[i] != want {
			t.Fatalf("waypoint %d = %+v, want %+v", i, path[i], want)
		}
	}
	// outer trace + 4 inner rings + return home
	if want := len(ring)*5 + 1; len(path) != want {
		t.Fatalf("expected %d waypoints, got %d", want, len(path))
	}
	outer := Bounds(path[:len(ring)])
	inner := Bounds(path[len(ring) : len(path)-1])
	if inner.MinLng <= outer.MinLng || inner.MaxLng >= outer.MaxLng {
		t.Fatalf("inner passes should shrink toward the centroid: outer=%+v inner=%+v", outer, inner)
	}
}

func TestCrosshatchSegments(t *testing.T) {
	box := geo.Box{MinLng: 0, MaxLng: 2, MinLat: 0, MaxLat: 1}
	for _, n := range []int{2, 3, 4, 5} {
		body := crosshatch(box, 40, n)
		var horizontal, vertical, diagonal int
		for i := 1; i < len(body); i++ {
			a, b := body[i-1], body[i]
			switch {
			case a == b:
			case a.Lat == b.Lat:
				horizontal++
			case a.Lng == b.Lng:
				vertical++
			default:
				diagonal++
				if !isCorner(box, a) || !isCorner(box, b) {
					t.Errorf("n=%d: diagonal %+v -> %+v is not corner to corner", n, a, b)
				}
			}
		}
		if horizontal < n || vertical < n {
			t.Errorf("n=%d: expected at least %d horizontal and vertical legs, got %d/%d", n, n, horizontal, vertical)
		}
		if diagonal != 2 {
			t.Errorf("n=%d: expected exactly 2 diagonals, got %d", n, diagonal)
		}
	}
}

func TestCrosshatchPathObliqueLegs(t *testing.T) {
	rect := []orb.Point{{0, 0}, {0, 1}, {2, 1}, {2, 0}}
	rings := map[string]orb.Ring{}
	for i := range rect {
		var r orb.Ring
		for j := range rect {
			r = append(r, rect[(i+j)%len(rect)])
		}
		r = append(r, r[0])
		rings["corner "+string(rune('A'+i))] = r
	}
	// first vertex on no box edge, and first vertex on one edge only
	rings["interior start"] = orb.Ring{{1, 0.5}, {0, 0}, {0, 1}, {2, 1}, {2, 0}, {1, 0.5}}
	rings["edge start"] = orb.Ring{{1, 0}, {0, 1}, {2, 1}, {1, 0}}

	for name, ring := range rings {
		for _, n := range []int{2, 3, 4, 5} {
			path, err := Generate(ring, PatternCrosshatch, 40, WithCrosshatchLines(n))
			if err != nil {
				t.Fatalf("%s n=%d: Generate: %v", name, n, err)
			}
			home := Waypoint{Lng: ring[0].Lon(), Lat: ring[0].Lat(), Altitude: 40}
			if path[0] != home || path[len(path)-1] != home {
				t.Fatalf("%s n=%d: path not closed at home", name, n)
			}
			oblique := 0
			for i := 1; i < len(path); i++ {
				a, b := path[i-1], path[i]
				if a.Lat != b.Lat && a.Lng != b.Lng {
					oblique++
				}
			}
			if oblique != 2 {
				t.Errorf("%s n=%d: expected exactly 2 oblique legs, got %d", name, n, oblique)
			}
			want := geo.Box{MinLng: 0, MaxLng: 2, MinLat: 0, MaxLat: 1}
			if got := Bounds(path); got != want {
				t.Errorf("%s n=%d: bounds = %+v, want %+v", name, n, got, want)
			}
		}
	}
}

func isCorner(box geo.Box, w Waypoint) bool {
	return (w.Lng == box.MinLng || w.Lng == box.MaxLng) && (w.Lat == box.MinLat || w.Lat == box.MaxLat)
}

func TestGenerateDegenerate(t *testing.T) {
	cases := map[string]orb.Ring{
		"two vertices": {{0, 0}, {1, 1}, {0, 0}},
		"flat":         {{0, 0}, {1, 0}, {2, 0}, {0, 0}},
		"vertical":     {{3, 0}, {3, 1}, {3, 2}, {3, 0}},
	}
	for name, ring := range cases {
		if _, err := Generate(ring, PatternGrid, 50); !errors.Is(err, ErrDegeneratePolygon) {
			t.Errorf("%s: expected ErrDegeneratePolygon, got %v", name, err)
		}
	}
}

func TestGenerateUnknownPattern(t *testing.T) {
	if _, err := Generate(square, Pattern("zigzag"), 50); !errors.Is(err, ErrUnknownPattern) {
		t.Fatalf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestParsePattern(t *testing.T) {
	cases := map[string]Pattern{"": PatternGrid, "Grid": PatternGrid, " perimeter ": PatternPerimeter, "CROSSHATCH": PatternCrosshatch}
	for in, want := range cases {
		got, err := ParsePattern(in)
		if err != nil || got != want {
			t.Errorf("ParsePattern(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePattern("spiral"); !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
}
