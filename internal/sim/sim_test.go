package sim

import (
	"sync"
	"time"

	"github.com/paulmach/orb"

	"surveyops/internal/flightpath"
	"surveyops/internal/mission"
	"surveyops/internal/telemetry"
)

// squareMission flies the four corners of a small square and returns home:
// five waypoints with no inner perimeter passes.
func squareMission(id string) mission.Mission {
	return mission.Mission{
		ID:         id,
		Name:       "square " + id,
		SurveyArea: mission.NewSurveyArea(orb.Ring{{10, 50}, {10, 50.01}, {10.01, 50.01}, {10.01, 50}, {10, 50}}),
		FlightParameters: mission.FlightParameters{
			Altitude: 80, Speed: 10, FlightPattern: flightpath.PatternPerimeter, Overlap: 70,
		},
		DroneID:  "d-" + id,
		Schedule: mission.Schedule{Type: mission.ScheduleOneTime, DateTime: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)},
		Status:   mission.StatusInProgress,
	}
}

var squareOpts = []flightpath.Option{flightpath.WithPerimeterPasses(0, 0)}

type collectWriter struct {
	mu     sync.Mutex
	rows   []telemetry.TrackRow
	events []telemetry.MissionEventRow
}

func (c *collectWriter) Write(r telemetry.TrackRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, r)
	return nil
}

func (c *collectWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collectWriter) tracks() []telemetry.TrackRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.TrackRow(nil), c.rows...)
}

// manualTicker never fires on its own; tests drive the driver with Tick.
type manualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newManualTicker() *manualTicker { return &manualTicker{c: make(chan time.Time)} }

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
