// Mission and drone records shared by the store, monitor and dashboard
package mission

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"surveyops/internal/flightpath"
	"surveyops/internal/geo"
)

// Status is the authoritative mission state.
type Status string

// Mission status constants.
const (
	StatusDraft      Status = "draft"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusScheduled, StatusInProgress, StatusCompleted, StatusAborted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown mission status %q", s)
}

// Active reports whether the status books the assigned drone.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// DroneStatus is the availability of a drone.
type DroneStatus string

// Drone status constants.
const (
	DroneAvailable   DroneStatus = "available"
	DroneInMission   DroneStatus = "in-mission"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
)

// ParseDroneStatus validates a drone status string. Empty means available.
func ParseDroneStatus(s string) (DroneStatus, error) {
	switch st := DroneStatus(s); st {
	case "":
		return DroneAvailable, nil
	case DroneAvailable, DroneInMission, DroneMaintenance, DroneOffline:
		return st, nil
	}
	return "", fmt.Errorf("unknown drone status %q", s)
}

// SurveyArea is a GeoJSON Polygon as exchanged with the map widget.
type SurveyArea struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// NewSurveyArea wraps a ring as a GeoJSON Polygon.
func NewSurveyArea(ring orb.Ring) SurveyArea {
	coords := make([][]float64, len(ring))
	for i, p := range ring {
		coords[i] = []float64{p.Lon(), p.Lat()}
	}
	return SurveyArea{Type: "Polygon", Coordinates: [][][]float64{coords}}
}

// Ring returns the validated outer ring.
func (a SurveyArea) Ring() (orb.Ring, error) {
	if a.Type != "" && a.Type != "Polygon" {
		return nil, fmt.Errorf("%w: survey area type %q", geo.ErrInvalidGeometry, a.Type)
	}
	if len(a.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: survey area has no rings", geo.ErrInvalidGeometry)
	}
	ring := make(orb.Ring, 0, len(a.Coordinates[0]))
	for i, c := range a.Coordinates[0] {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: position %d has %d values", geo.ErrInvalidGeometry, i, len(c))
		}
		ring = append(ring, orb.Point{c[0], c[1]})
	}
	if err := geo.Validate(ring); err != nil {
		return nil, err
	}
	return ring, nil
}

// FlightParameters configure how the drone flies the survey.
type FlightParameters struct {
	Altitude      float64            `json:"altitude"`
	Speed         float64            `json:"speed"`
	FlightPattern flightpath.Pattern `json:"flightPattern"`
	Overlap       float64            `json:"overlap"`
}

// DefaultOverlap is applied when no overlap is given.
const DefaultOverlap = 70

// Validate checks the parameter ranges.
func (p FlightParameters) Validate() error {
	if p.Altitude < 10 || p.Altitude > 500 {
		return fmt.Errorf("%w: altitude %.1f outside [10,500] m", ErrInvalidParameters, p.Altitude)
	}
	if p.Speed < 1 || p.Speed > 20 {
		return fmt.Errorf("%w: speed %.1f outside [1,20] m/s", ErrInvalidParameters, p.Speed)
	}
	if _, err := flightpath.ParsePattern(string(p.FlightPattern)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if p.Overlap < 0 || p.Overlap > 90 {
		return fmt.Errorf("%w: overlap %.0f outside [0,90] %%", ErrInvalidParameters, p.Overlap)
	}
	return nil
}

// ScheduleType distinguishes one-off from recurring missions.
type ScheduleType string

const (
	ScheduleOneTime   ScheduleType = "oneTime"
	ScheduleRecurring ScheduleType = "recurring"
)

// Recurrence describes how a recurring mission repeats.
type Recurrence struct {
	Frequency string    `json:"frequency"`
	Interval  int       `json:"interval"`
	EndDate   time.Time `json:"endDate,omitempty"`
}

// Schedule places a mission in time. DurationMinutes bounds the window used
// for drone double-booking checks.
type Schedule struct {
	Type            ScheduleType `json:"type"`
	DateTime        time.Time    `json:"dateTime"`
	DurationMinutes int          `json:"durationMinutes"`
	Recurrence      *Recurrence  `json:"recurrence,omitempty"`
}

// Window returns the booked interval. A zero duration books a single instant.
func (s Schedule) Window() (time.Time, time.Time) {
	return s.DateTime, s.DateTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Validate checks the schedule fields.
func (s Schedule) Validate() error {
	if s.DateTime.IsZero() {
		return fmt.Errorf("%w: schedule date/time is required", ErrInvalidParameters)
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidParameters)
	}
	switch s.Type {
	case "", ScheduleOneTime:
	case ScheduleRecurring:
		if s.Recurrence == nil {
			return fmt.Errorf("%w: recurring schedule needs a recurrence", ErrInvalidParameters)
		}
		switch s.Recurrence.Frequency {
		case "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("%w: recurrence frequency %q", ErrInvalidParameters, s.Recurrence.Frequency)
		}
		if s.Recurrence.Interval < 1 || s.Recurrence.Interval > 30 {
			return fmt.Errorf("%w: recurrence interval %d outside [1,30]", ErrInvalidParameters, s.Recurrence.Interval)
		}
	default:
		return fmt.Errorf("%w: schedule type %q", ErrInvalidParameters, s.Type)
	}
	return nil
}

// Overlaps reports whether two schedules book intersecting windows.
func Overlaps(a, b Schedule) bool {
	as, ae := a.Window()
	bs, be := b.Window()
	if as.Equal(bs) {
		return true
	}
	return as.Before(be) && bs.Before(ae)
}

// Mission is a planned survey flight.
type Mission struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	SurveyArea       SurveyArea       `json:"surveyArea"`
	FlightParameters FlightParameters `json:"flightParameters"`
	DroneID          string           `json:"drone"`
	Schedule         Schedule         `json:"schedule"`
	Status           Status           `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Editable reports whether non-status fields may change.
func (m Mission) Editable() bool {
	return m.Status == StatusDraft || m.Status == StatusScheduled
}

// Validate checks the fields required for a plannable mission.
func (m Mission) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: mission name is required", ErrInvalidParameters)
	}
	if m.DroneID == "" {
		return fmt.Errorf("%w: a drone must be assigned", ErrInvalidParameters)
	}
	if _, err := m.SurveyArea.Ring(); err != nil {
		return err
	}
	if err := m.FlightParameters.Validate(); err != nil {
		return err
	}
	return m.Schedule.Validate()
}

// Path generates the flight path for the mission's survey area.
func (m Mission) Path(opts ...flightpath.Option) ([]flightpath.Waypoint, error) {
	ring, err := m.SurveyArea.Ring()
	if err != nil {
		return nil, err
	}
	pattern, err := flightpath.ParsePattern(string(m.FlightParameters.FlightPattern))
	if err != nil {
		return nil, err
	}
	return flightpath.Generate(ring, pattern, m.FlightParameters.Altitude, opts...)
}

// Location is the last known position of a drone.
type Location struct {
	Lng       float64   `json:"lng"`
	Lat       float64   `json:"lat"`
	Name      string    `json:"locationName,omitempty"`
	UpdatedAt time.Time `json:"lastUpdated"`
}

// Drone is a registered aircraft.
type Drone struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SerialNumber  string      `json:"serialNumber"`
	Model         string      `json:"model"`
	Status        DroneStatus `json:"status"`
	BatteryLevel  float64     `json:"batteryLevel"`
	MaxFlightTime int         `json:"maxFlightTime"`
	Location      *Location   `json:"location,omitempty"`
	HealthStatus  string      `json:"healthStatus,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Validate checks the drone fields.
func (d Drone) Validate() error {
	if d.Name == "" || d.SerialNumber == "" || d.Model == "" {
		return fmt.Errorf("%w: name, serial number and model are required", ErrInvalidParameters)
	}
	if _, err := ParseDroneStatus(string(d.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if d.BatteryLevel < 0 || d.BatteryLevel > 100 {
		return fmt.Errorf("%w: battery level %.0f outside [0,100]", ErrInvalidParameters, d.BatteryLevel)
	}
	if d.MaxFlightTime < 5 || d.MaxFlightTime > 180 {
		return fmt.Errorf("%w: max flight time %d outside [5,180] minutes", ErrInvalidParameters, d.MaxFlightTime)
	}
	return nil
}
