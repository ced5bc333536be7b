// Simulation driver walking a mission's flight path on a fixed tick
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/telemetry"
)

// ErrSimulationAlreadyRunning is returned when Start is called twice for the
// same mission without an intervening Stop.
var ErrSimulationAlreadyRunning = errors.New("simulation already running")

// State is the live simulation state exposed to the map.
type State struct {
	MissionID         string                `json:"missionId"`
	DroneID           string                `json:"droneId"`
	DronePosition     *flightpath.Waypoint  `json:"dronePosition"`
	FlightPath        []flightpath.Waypoint `json:"flightPath"`
	Trail             []flightpath.Waypoint `json:"trail"`
	CompletionPercent int                   `json:"completionPercent"`
	StepIndex         int                   `json:"stepIndex"`
	Running           bool                  `json:"running"`
}

// Ticker abstracts time.Ticker for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// CompleteFunc is invoked once when the path is exhausted.
type CompleteFunc func(ctx context.Context, missionID string)

// Driver steps through one mission's flight path at a time.
type Driver struct {
	mu sync.Mutex

	writer    TrackWriter
	interval  time.Duration
	pathOpts  []flightpath.Option
	newTicker func(time.Duration) Ticker
	now       func() time.Time
	onDone    CompleteFunc

	state State
	path  []flightpath.Waypoint
	run   *run
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticker Ticker
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithTickInterval sets the time between steps.
func WithTickInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithPathOptions forwards resolution options to the path generator.
func WithPathOptions(opts ...flightpath.Option) DriverOption {
	return func(dr *Driver) { dr.pathOpts = append(dr.pathOpts, opts...) }
}

// WithTicker replaces the ticker factory.
func WithTicker(f func(time.Duration) Ticker) DriverOption {
	return func(dr *Driver) { dr.newTicker = f }
}

// WithClock replaces the time source used for row timestamps.
func WithClock(now func() time.Time) DriverOption {
	return func(dr *Driver) { dr.now = now }
}

// OnComplete registers the callback fired when the path is exhausted.
func OnComplete(f CompleteFunc) DriverOption {
	return func(dr *Driver) { dr.onDone = f }
}

// NewDriver creates an idle driver. writer may be nil.
func NewDriver(writer TrackWriter, opts ...DriverOption) *Driver {
	d := &Driver{
		writer:    writer,
		interval:  time.Second,
		newTicker: func(i time.Duration) Ticker { return realTicker{time.NewTicker(i)} },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start generates the flight path for m and begins stepping through it. The
// path is built before any state changes so a bad polygon leaves the driver
// untouched.
func (d *Driver) Start(ctx context.Context, m mission.Mission) error {
	path, err := m.Path(d.pathOpts...)
	if err != nil {
		return fmt.Errorf("generate flight path for %s: %w", m.ID, err)
	}

	d.mu.Lock()
	if d.run != nil {
		if d.state.MissionID == m.ID {
			d.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrSimulationAlreadyRunning, m.ID)
		}
		d.stopLocked()
	}

	start := path[0]
	d.path = path
	d.state = State{
		MissionID:     m.ID,
		DroneID:       m.DroneID,
		DronePosition: &start,
		FlightPath:    path,
		Trail:         []flightpath.Waypoint{start},
		Running:       true,
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{ctx: runCtx, cancel: cancel, ticker: d.newTicker(d.interval)}
	d.run = r
	row := d.rowLocked()
	d.mu.Unlock()

	d.write(ctx, row)
	go d.loop(r)
	return nil
}

// loop advances one step per tick until the run is stopped.
func (d *Driver) loop(r *run) {
	defer r.ticker.Stop()
	for {
		select {
		case <-r.ticker.C():
			if !d.advance(r) {
				return
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// Tick advances one step synchronously. It reports whether the simulation is
// still running afterwards.
func (d *Driver) Tick() bool {
	d.mu.Lock()
	r := d.run
	d.mu.Unlock()
	if r == nil {
		return false
	}
	return d.advance(r)
}

func (d *Driver) advance(r *run) bool {
	d.mu.Lock()
	if d.run != r {
		d.mu.Unlock()
		return false
	}
	last := len(d.path) - 1
	if d.state.StepIndex < last {
		d.state.StepIndex++
		wp := d.path[d.state.StepIndex]
		d.state.DronePosition = &wp
		d.state.Trail = append(d.state.Trail, wp)
		d.state.CompletionPercent = percent(d.state.StepIndex, last)
	}
	row := d.rowLocked()
	done := d.state.StepIndex >= last
	missionID := d.state.MissionID
	if done {
		d.state.CompletionPercent = 100
		row.CompletionPercent = 100
		d.stopLocked()
	}
	onDone := d.onDone
	d.mu.Unlock()

	d.write(r.ctx, row)
	if done && onDone != nil {
		onDone(context.WithoutCancel(r.ctx), missionID)
	}
	return !done
}

// Stop cancels the pending timer. It is safe to call at any time, including
// from within the completion callback.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	if d.run == nil {
		return
	}
	d.run.cancel()
	d.run = nil
	d.state.Running = false
}

// Clear stops the driver and discards the simulation state.
func (d *Driver) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.state = State{}
	d.path = nil
}

// Select switches the monitored mission. The prior run is always stopped; a
// new one starts only when m is in progress.
func (d *Driver) Select(ctx context.Context, m mission.Mission) error {
	d.Clear()
	if m.Status != mission.StatusInProgress {
		return nil
	}
	return d.Start(ctx, m)
}

// Snapshot returns a copy of the current state.
func (d *Driver) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	if s.DronePosition != nil {
		p := *s.DronePosition
		s.DronePosition = &p
	}
	s.FlightPath = append([]flightpath.Waypoint(nil), s.FlightPath...)
	s.Trail = append([]flightpath.Waypoint(nil), s.Trail...)
	return s
}

// Running reports whether a timer is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run != nil
}

// MissionID returns the mission bound to the current state, if any.
func (d *Driver) MissionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.MissionID
}

func (d *Driver) rowLocked() telemetry.TrackRow {
	wp := d.path[d.state.StepIndex]
	return telemetry.TrackRow{
		MissionID:         d.state.MissionID,
		DroneID:           d.state.DroneID,
		Lng:               wp.Lng,
		Lat:               wp.Lat,
		Alt:               wp.Altitude,
		StepIndex:         d.state.StepIndex,
		PathLength:        len(d.path),
		CompletionPercent: d.state.CompletionPercent,
		Timestamp:         d.now().UTC(),
	}
}

func (d *Driver) write(ctx context.Context, row telemetry.TrackRow) {
	if d.writer == nil {
		return
	}
	if err := d.writer.Write(row); err != nil {
		logging.FromContext(ctx).Error("track write failed", "mission_id", row.MissionID, "err", err)
	}
}

func percent(step, last int) int {
	if last <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(min(step, last)) / float64(last)))
}
