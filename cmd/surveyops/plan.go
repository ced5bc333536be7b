package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"surveyops/internal/flightpath"
	"surveyops/internal/geo"
	"surveyops/internal/mission"
)

var (
	planPattern  string
	planAltitude float64
	planSpeed    float64
	planGeoJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan <polygon.geojson|->",
	Short: "Generate a flight path for a survey polygon",
	Long:  "plan reads a GeoJSON Polygon or Feature and prints the generated flight path summary, or the path itself as GeoJSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		ring, err := geo.ParsePolygon(data)
		if err != nil {
			return err
		}
		pattern, err := flightpath.ParsePattern(planPattern)
		if err != nil {
			return err
		}
		if planSpeed <= 0 {
			return fmt.Errorf("speed must be positive, got %v", planSpeed)
		}
		path, err := flightpath.Generate(ring, pattern, planAltitude, cfg.PathOptions()...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if planGeoJSON {
			return writePlanGeoJSON(out, ring, path, pattern)
		}
		return writePlanSummary(out, ring, path, pattern)
	},
}

type planSummary struct {
	Pattern           flightpath.Pattern `json:"pattern"`
	Altitude          float64            `json:"altitude"`
	Bounds            geo.Box            `json:"bounds"`
	AreaKm2           float64            `json:"areaKm2"`
	Area              string             `json:"area"`
	Waypoints         int                `json:"waypoints"`
	PathLengthMeters  float64            `json:"pathLengthMeters"`
	EstimatedDuration string             `json:"estimatedDuration"`
}

func writePlanSummary(w io.Writer, ring orb.Ring, path []flightpath.Waypoint, pattern flightpath.Pattern) error {
	length := geo.PathLength(flightpath.LineString(path))
	area := geo.EstimateArea(ring)
	est, err := mission.EstimateDuration(mission.Mission{
		SurveyArea:       mission.NewSurveyArea(ring),
		FlightParameters: mission.FlightParameters{Altitude: planAltitude, Speed: planSpeed, FlightPattern: pattern},
	}, cfg.PathOptions()...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(planSummary{
		Pattern:           pattern,
		Altitude:          planAltitude,
		Bounds:            flightpath.Bounds(path),
		AreaKm2:           area,
		Area:              geo.FormatArea(area),
		Waypoints:         len(path),
		PathLengthMeters:  length,
		EstimatedDuration: est.String(),
	})
}

func writePlanGeoJSON(w io.Writer, ring orb.Ring, path []flightpath.Waypoint, pattern flightpath.Pattern) error {
	fc := geojson.NewFeatureCollection()
	area := geojson.NewFeature(orb.Polygon{ring})
	area.Properties["name"] = "survey_area"
	fc.Append(area)

	route := geojson.NewFeature(flightpath.LineString(path))
	route.Properties["name"] = "flight_path"
	route.Properties["pattern"] = string(pattern)
	route.Properties["altitude"] = planAltitude
	fc.Append(route)

	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func init() {
	planCmd.Flags().StringVar(&planPattern, "pattern", string(flightpath.PatternGrid), "Flight pattern: grid, perimeter, crosshatch")
	planCmd.Flags().Float64Var(&planAltitude, "altitude", 100, "Flight altitude in meters")
	planCmd.Flags().Float64Var(&planSpeed, "speed", 10, "Ground speed in m/s for the duration estimate")
	planCmd.Flags().BoolVar(&planGeoJSON, "geojson", false, "Print the survey area and flight path as a GeoJSON FeatureCollection")
}
