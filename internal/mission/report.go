package mission

import (
	"math"
	"time"

	"surveyops/internal/flightpath"
	"surveyops/internal/geo"
)

// Summary aggregates missions for the reports page.
type Summary struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"byStatus"`
	SuccessRate   float64        `json:"successRate"`
	SurveyedKm2   float64        `json:"surveyedKm2"`
	SurveyedArea  string         `json:"surveyedArea"`
	FlightMinutes int            `json:"flightMinutes"`
}

// Summarize counts missions per status. SuccessRate is the share of finished
// missions (completed or aborted) that completed, in percent.
func Summarize(missions []Mission) Summary {
	s := Summary{ByStatus: make(map[Status]int)}
	for _, m := range missions {
		s.Total++
		s.ByStatus[m.Status]++
		if m.Status != StatusCompleted {
			continue
		}
		if ring, err := m.SurveyArea.Ring(); err == nil {
			s.SurveyedKm2 += geo.EstimateArea(ring)
		}
		s.FlightMinutes += m.Schedule.DurationMinutes
	}
	if done := s.ByStatus[StatusCompleted] + s.ByStatus[StatusAborted]; done > 0 {
		s.SuccessRate = math.Round(1000*float64(s.ByStatus[StatusCompleted])/float64(done)) / 10
	}
	s.SurveyedArea = geo.FormatArea(s.SurveyedKm2)
	return s
}

// Report describes a single mission's survey.
type Report struct {
	MissionID         string        `json:"missionId"`
	Name              string        `json:"name"`
	Status            Status        `json:"status"`
	DroneID           string        `json:"drone"`
	Pattern           string        `json:"flightPattern"`
	AreaKm2           float64       `json:"areaKm2"`
	Area              string        `json:"area"`
	Bounds            geo.Box       `json:"bounds"`
	Waypoints         int           `json:"waypoints"`
	PathLengthMeters  float64       `json:"pathLengthMeters"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
}

// NewReport generates the flight path for m and reports its dimensions.
func NewReport(m Mission, opts ...flightpath.Option) (Report, error) {
	ring, err := m.SurveyArea.Ring()
	if err != nil {
		return Report{}, err
	}
	path, err := m.Path(opts...)
	if err != nil {
		return Report{}, err
	}
	area := geo.EstimateArea(ring)
	length := geo.PathLength(flightpath.LineString(path))
	return Report{
		MissionID:         m.ID,
		Name:              m.Name,
		Status:            m.Status,
		DroneID:           m.DroneID,
		Pattern:           string(m.FlightParameters.FlightPattern),
		AreaKm2:           area,
		Area:              geo.FormatArea(area),
		Bounds:            flightpath.Bounds(path),
		Waypoints:         len(path),
		PathLengthMeters:  length,
		EstimatedDuration: flightDuration(length, m.FlightParameters.Speed),
	}, nil
}

// EstimateDuration returns how long the drone needs to fly m's path.
func EstimateDuration(m Mission, opts ...flightpath.Option) (time.Duration, error) {
	path, err := m.Path(opts...)
	if err != nil {
		return 0, err
	}
	return flightDuration(geo.PathLength(flightpath.LineString(path)), m.FlightParameters.Speed), nil
}

func flightDuration(meters, speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(meters / speed * float64(time.Second)).Round(time.Second)
}

// DurationMinutes rounds d up to whole minutes.
func DurationMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
