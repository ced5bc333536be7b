// Package seed loads drone and mission fixtures and applies them to a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
)

// Fixture is a named set of drones and missions.
type Fixture struct {
	Name        string    `yaml:"name,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Drones      []Drone   `yaml:"drones"`
	Missions    []Mission `yaml:"missions"`
}

// Drone declares a fleet member. Key is how missions refer to it.
type Drone struct {
	Key           string    `yaml:"key"`
	Name          string    `yaml:"name"`
	SerialNumber  string    `yaml:"serial_number"`
	Model         string    `yaml:"model"`
	BatteryLevel  float64   `yaml:"battery_level"`
	MaxFlightTime int       `yaml:"max_flight_time"`
	Location      *Location `yaml:"location,omitempty"`
}

// Location is a named drone position.
type Location struct {
	Lng  float64 `yaml:"lng"`
	Lat  float64 `yaml:"lat"`
	Name string  `yaml:"name,omitempty"`
}

// Mission declares a survey. StartOffset is relative to the time the fixture
// is applied; Status is reached by firing the regular transitions.
type Mission struct {
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description,omitempty"`
	Drone           string        `yaml:"drone"`
	Pattern         string        `yaml:"pattern,omitempty"`
	Altitude        float64       `yaml:"altitude"`
	Speed           float64       `yaml:"speed"`
	Overlap         *float64      `yaml:"overlap,omitempty"`
	StartOffset     time.Duration `yaml:"start_offset"`
	DurationMinutes int           `yaml:"duration_minutes,omitempty"`
	Polygon         [][2]float64  `yaml:"polygon"`
	Status          string        `yaml:"status,omitempty"`
}

// Target is the part of the store fixtures are written to.
type Target interface {
	CreateDrone(ctx context.Context, d mission.Drone) (mission.Drone, error)
	ListDrones(ctx context.Context) ([]mission.Drone, error)
	CreateMission(ctx context.Context, m mission.Mission, opts ...flightpath.Option) (mission.Mission, error)
	UpdateStatus(ctx context.Context, id string, status mission.Status) (mission.Mission, error)
}

// Result lists what Apply created.
type Result struct {
	Drones   []mission.Drone
	Missions []mission.Mission
}

// Load reads a YAML fixture from disk.
func Load(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Apply creates the fixture's drones and missions relative to now. Drones
// whose serial number already exists are reused. Missions are all created
// before any status transition so the drone booking checks see the whole plan.
func (f *Fixture) Apply(ctx context.Context, t Target, now time.Time, opts ...flightpath.Option) (Result, error) {
	log := logging.FromContext(ctx)
	var res Result

	existing, err := t.ListDrones(ctx)
	if err != nil {
		return res, err
	}
	bySerial := make(map[string]mission.Drone, len(existing))
	for _, d := range existing {
		bySerial[d.SerialNumber] = d
	}

	ids := make(map[string]string, len(f.Drones))
	for _, fd := range f.Drones {
		if d, ok := bySerial[fd.SerialNumber]; ok {
			ids[fd.Key] = d.ID
			log.Info("drone exists, reusing", "serial", fd.SerialNumber, "drone_id", d.ID)
			continue
		}
		d, err := t.CreateDrone(ctx, fd.toDrone(now))
		if err != nil {
			return res, fmt.Errorf("drone %s: %w", fd.Key, err)
		}
		ids[fd.Key] = d.ID
		res.Drones = append(res.Drones, d)
	}

	for _, fm := range f.Missions {
		droneID, ok := ids[fm.Drone]
		if !ok {
			return res, fmt.Errorf("mission %q: %w: unknown drone key %q", fm.Name, mission.ErrInvalidParameters, fm.Drone)
		}
		m, err := t.CreateMission(ctx, fm.toMission(droneID, now), opts...)
		if err != nil {
			return res, fmt.Errorf("mission %q: %w", fm.Name, err)
		}
		res.Missions = append(res.Missions, m)
	}

	// Finished missions go first so their drones are free again before any
	// mission is left in progress.
	for _, live := range []bool{false, true} {
		for i, fm := range f.Missions {
			steps, err := statusSteps(fm.Status)
			if err != nil {
				return res, fmt.Errorf("mission %q: %w", fm.Name, err)
			}
			if len(steps) == 0 || (steps[len(steps)-1] == mission.StatusInProgress) != live {
				continue
			}
			for _, st := range steps {
				m, err := t.UpdateStatus(ctx, res.Missions[i].ID, st)
				if err != nil {
					return res, fmt.Errorf("mission %q to %s: %w", fm.Name, st, err)
				}
				res.Missions[i] = m
			}
		}
	}
	log.Info("fixture applied", "fixture", f.Name, "drones", len(res.Drones), "missions", len(res.Missions))
	return res, nil
}

// statusSteps returns the transitions that lead from scheduled to target.
func statusSteps(target string) ([]mission.Status, error) {
	if target == "" {
		return nil, nil
	}
	st, err := mission.ParseStatus(target)
	if err != nil {
		return nil, err
	}
	switch st {
	case mission.StatusScheduled:
		return nil, nil
	case mission.StatusInProgress, mission.StatusCancelled:
		return []mission.Status{st}, nil
	case mission.StatusCompleted, mission.StatusAborted:
		return []mission.Status{mission.StatusInProgress, st}, nil
	}
	return nil, errors.New("fixtures cannot seed " + string(st) + " missions")
}

func (d Drone) toDrone(now time.Time) mission.Drone {
	out := mission.Drone{
		Name:          d.Name,
		SerialNumber:  d.SerialNumber,
		Model:         d.Model,
		Status:        mission.DroneAvailable,
		BatteryLevel:  d.BatteryLevel,
		MaxFlightTime: d.MaxFlightTime,
	}
	if d.Location != nil {
		out.Location = &mission.Location{Lng: d.Location.Lng, Lat: d.Location.Lat, Name: d.Location.Name, UpdatedAt: now}
	}
	return out
}

func (m Mission) toMission(droneID string, now time.Time) mission.Mission {
	ring := make(orb.Ring, 0, len(m.Polygon)+1)
	for _, p := range m.Polygon {
		ring = append(ring, orb.Point{p[0], p[1]})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	overlap := float64(mission.DefaultOverlap)
	if m.Overlap != nil {
		overlap = *m.Overlap
	}
	pattern := flightpath.Pattern(m.Pattern)
	if pattern == "" {
		pattern = flightpath.PatternGrid
	}
	return mission.Mission{
		Name:        m.Name,
		Description: m.Description,
		SurveyArea:  mission.NewSurveyArea(ring),
		FlightParameters: mission.FlightParameters{
			Altitude:      m.Altitude,
			Speed:         m.Speed,
			FlightPattern: pattern,
			Overlap:       overlap,
		},
		DroneID: droneID,
		Schedule: mission.Schedule{
			Type:            mission.ScheduleOneTime,
			DateTime:        now.Add(m.StartOffset).Truncate(time.Minute),
			DurationMinutes: m.DurationMinutes,
		},
	}
}
