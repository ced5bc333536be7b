// Package monitor implements the mission-monitoring view: it owns the
// simulation driver, the selected mission and the polled mission list, and
// drives status transitions against the mission service.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/sim"
	"surveyops/internal/telemetry"
)

// ErrUnknownMission is returned when the mission is neither cached nor known
// to the service.
var ErrUnknownMission = errors.New("unknown mission")

// MissionService is the CRUD collaborator the monitor reads missions from
// and reports status changes to.
type MissionService interface {
	ListMissions(ctx context.Context, statuses ...mission.Status) ([]mission.Mission, error)
	GetMission(ctx context.Context, id string) (mission.Mission, error)
	UpdateStatus(ctx context.Context, id string, status mission.Status) (mission.Mission, error)
}

// MapData is what the map widget renders.
type MapData struct {
	MissionID         string                `json:"missionId,omitempty"`
	DronePosition     *flightpath.Waypoint  `json:"dronePosition"`
	FlightPath        []flightpath.Waypoint `json:"flightPath"`
	Trail             []flightpath.Waypoint `json:"trail"`
	SurveyArea        *mission.SurveyArea   `json:"surveyArea"`
	CompletionPercent int                   `json:"completionPercent"`
	Running           bool                  `json:"running"`
}

// Monitor coordinates one simulation driver with the mission service.
type Monitor struct {
	mu       sync.Mutex
	tmu      sync.Mutex // serializes transitions
	svc      MissionService
	driver   *sim.Driver
	events   sim.MissionEventWriter
	now      func() time.Time
	poll     time.Duration
	pathOpts []flightpath.Option
	drvOpts  []sim.DriverOption

	missions []mission.Mission
	selected string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithEventWriter sets where mission transitions are reported.
func WithEventWriter(w sim.MissionEventWriter) Option {
	return func(m *Monitor) { m.events = w }
}

// WithClock overrides the time used for the start guard.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithPollInterval sets the mission list refresh period.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithPathOptions sets the path resolution for simulation and previews.
func WithPathOptions(opts ...flightpath.Option) Option {
	return func(m *Monitor) { m.pathOpts = append(m.pathOpts, opts...) }
}

// WithDriverOptions passes options through to the simulation driver.
func WithDriverOptions(opts ...sim.DriverOption) Option {
	return func(m *Monitor) { m.drvOpts = append(m.drvOpts, opts...) }
}

// New creates a monitor writing simulated track rows to tracks.
func New(svc MissionService, tracks sim.TrackWriter, opts ...Option) *Monitor {
	m := &Monitor{svc: svc, now: time.Now, poll: 30 * time.Second}
	for _, opt := range opts {
		opt(m)
	}
	drvOpts := append([]sim.DriverOption{sim.WithPathOptions(m.pathOpts...)}, m.drvOpts...)
	drvOpts = append(drvOpts, sim.OnComplete(m.exhausted))
	m.driver = sim.NewDriver(tracks, drvOpts...)
	return m
}

// Driver exposes the simulation driver.
func (m *Monitor) Driver() *sim.Driver { return m.driver }

// exhausted is the driver's completion callback.
func (m *Monitor) exhausted(ctx context.Context, id string) {
	if _, err := m.Complete(ctx, id); err != nil {
		logging.FromContext(ctx).Error("auto-complete failed", "mission_id", id, "err", err)
	}
}

// Refresh reloads the mission list from the service.
func (m *Monitor) Refresh(ctx context.Context) error {
	list, err := m.svc.ListMissions(ctx)
	if err != nil {
		return fmt.Errorf("refresh missions: %w", err)
	}
	m.mu.Lock()
	m.missions = list
	m.mu.Unlock()
	return nil
}

// Poll refreshes the mission list until ctx is done. It never touches the
// simulation state.
func (m *Monitor) Poll(ctx context.Context) {
	log := logging.FromContext(ctx)
	if err := m.Refresh(ctx); err != nil {
		log.Error("mission poll failed", "err", err)
	}
	t := time.NewTicker(m.poll)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := m.Refresh(ctx); err != nil {
				log.Error("mission poll failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Missions returns the cached mission list.
func (m *Monitor) Missions() []mission.Mission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mission.Mission(nil), m.missions...)
}

// Selected returns the id of the monitored mission.
func (m *Monitor) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Mission returns a mission from the cache, falling back to the service.
func (m *Monitor) Mission(ctx context.Context, id string) (mission.Mission, error) {
	m.mu.Lock()
	if i := m.indexLocked(id); i >= 0 {
		ms := m.missions[i]
		m.mu.Unlock()
		return ms, nil
	}
	m.mu.Unlock()
	ms, err := m.svc.GetMission(ctx, id)
	if err != nil {
		return mission.Mission{}, fmt.Errorf("%w: %s: %w", ErrUnknownMission, id, err)
	}
	m.store(ms)
	return ms, nil
}

func (m *Monitor) indexLocked(id string) int {
	for i := range m.missions {
		if m.missions[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Monitor) store(ms mission.Mission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(ms.ID); i >= 0 {
		m.missions[i] = ms
		return
	}
	m.missions = append(m.missions, ms)
}

// Select switches the monitored mission. An in-progress mission resumes
// its simulation from the start of the path; anything else clears the map.
func (m *Monitor) Select(ctx context.Context, id string) error {
	ms, err := m.Mission(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.selected = id
	m.mu.Unlock()
	return m.driver.Select(context.WithoutCancel(ctx), ms)
}

// Start fires the start transition and begins the simulation.
func (m *Monitor) Start(ctx context.Context, id string) (mission.Mission, error) {
	return m.transition(ctx, id, mission.EventStart)
}

// Complete fires the complete transition and stops the simulation.
func (m *Monitor) Complete(ctx context.Context, id string) (mission.Mission, error) {
	return m.transition(ctx, id, mission.EventComplete)
}

// Abort fires the abort transition and stops the simulation.
func (m *Monitor) Abort(ctx context.Context, id string) (mission.Mission, error) {
	return m.transition(ctx, id, mission.EventAbort)
}

// transition runs the guards on a copy, applies the simulation side effect,
// commits locally, then reports the new status to the service. Service
// failures are logged and not retried; the next poll reconciles.
func (m *Monitor) transition(ctx context.Context, id string, ev mission.Event) (mission.Mission, error) {
	m.tmu.Lock()
	defer m.tmu.Unlock()
	log := logging.FromContext(ctx)
	cur, err := m.Mission(ctx, id)
	if err != nil {
		return mission.Mission{}, err
	}
	next := cur
	if err := mission.Fire(&next, nil, ev, m.now()); err != nil {
		m.emit(ctx, cur, ev, cur.Status, err)
		return cur, err
	}

	switch ev {
	case mission.EventStart:
		if err := m.driver.Start(context.WithoutCancel(ctx), next); err != nil {
			m.emit(ctx, cur, ev, cur.Status, err)
			return cur, err
		}
		m.mu.Lock()
		m.selected = id
		m.mu.Unlock()
	case mission.EventComplete, mission.EventAbort:
		if m.driver.MissionID() == id {
			m.driver.Stop()
		}
	}
	m.store(next)

	if saved, err := m.svc.UpdateStatus(ctx, id, next.Status); err != nil {
		log.Error("mission status update failed", "mission_id", id, "status", next.Status, "err", err)
	} else {
		m.store(saved)
		next = saved
	}
	m.emit(ctx, cur, ev, next.Status, nil)
	return next, nil
}

func (m *Monitor) emit(ctx context.Context, ms mission.Mission, ev mission.Event, to mission.Status, cause error) {
	if m.events == nil {
		return
	}
	row := telemetry.MissionEventRow{
		MissionID: ms.ID,
		DroneID:   ms.DroneID,
		Event:     string(ev),
		From:      string(ms.Status),
		To:        string(to),
		Timestamp: m.now().UTC(),
	}
	if cause != nil {
		row.Error = cause.Error()
	}
	if err := m.events.WriteMissionEvent(row); err != nil {
		logging.FromContext(ctx).Error("mission event write failed",
			"mission_id", ms.ID, "event", ev, "err", err)
	}
}

// MapData returns the map widget input for the selected mission. A mission
// that is not being simulated shows its planned path without a drone.
func (m *Monitor) MapData(ctx context.Context) (MapData, error) {
	st := m.driver.Snapshot()
	id := m.Selected()
	if id == "" {
		id = st.MissionID
	}
	if id == "" {
		return MapData{}, nil
	}
	ms, err := m.Mission(ctx, id)
	if err != nil {
		return MapData{}, err
	}
	area := ms.SurveyArea
	out := MapData{MissionID: id, SurveyArea: &area}
	if st.MissionID == id {
		out.DronePosition = st.DronePosition
		out.FlightPath = st.FlightPath
		out.Trail = st.Trail
		out.CompletionPercent = st.CompletionPercent
		out.Running = st.Running
		return out, nil
	}
	path, err := ms.Path(m.pathOpts...)
	if err != nil {
		return out, err
	}
	out.FlightPath = path
	if ms.Status == mission.StatusCompleted {
		out.CompletionPercent = 100
	}
	return out, nil
}

// Stop halts any running simulation.
func (m *Monitor) Stop() {
	m.driver.Stop()
}
