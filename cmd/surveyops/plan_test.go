package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"

	"surveyops/internal/config"
	"surveyops/internal/flightpath"
)

func squarePlan(t *testing.T) (orb.Ring, []flightpath.Waypoint) {
	t.Helper()
	ring := orb.Ring{{16.30, 48.10}, {16.30, 48.11}, {16.31, 48.11}, {16.31, 48.10}, {16.30, 48.10}}
	path, err := flightpath.Generate(ring, flightpath.PatternGrid, 80, flightpath.WithResolution(4))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return ring, path
}

func TestPlanOutputs(t *testing.T) {
	cfg = config.Default()
	ring, path := squarePlan(t)

	var buf bytes.Buffer
	planAltitude, planSpeed = 80, 10
	if err := writePlanSummary(&buf, ring, path, "grid"); err != nil {
		t.Fatalf("writePlanSummary: %v", err)
	}
	var sum planSummary
	if err := json.Unmarshal(buf.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Waypoints != len(path) || sum.PathLengthMeters <= 0 || sum.EstimatedDuration == "0s" {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	buf.Reset()
	if err := writePlanGeoJSON(&buf, ring, path, "grid"); err != nil {
		t.Fatalf("writePlanGeoJSON: %v", err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(buf.Bytes(), &fc); err != nil {
		t.Fatalf("decode geojson: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 || fc.Features[1].Geometry.Type != "LineString" {
		t.Fatalf("unexpected feature collection: %s", buf.String())
	}
}
