package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
)

const missionColumns = `id, name, description, survey_area, altitude, speed, flight_pattern, overlap, drone_id, schedule, scheduled_at, status, created_at, updated_at`

func scanMission(r rowScanner) (mission.Mission, error) {
	var m mission.Mission
	var area, sched, pattern, st string
	var scheduledAt, created, updated int64
	if err := r.Scan(&m.ID, &m.Name, &m.Description, &area, &m.FlightParameters.Altitude,
		&m.FlightParameters.Speed, &pattern, &m.FlightParameters.Overlap, &m.DroneID,
		&sched, &scheduledAt, &st, &created, &updated); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(area), &m.SurveyArea); err != nil {
		return m, fmt.Errorf("decode survey area of mission %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(sched), &m.Schedule); err != nil {
		return m, fmt.Errorf("decode schedule of mission %s: %w", m.ID, err)
	}
	m.FlightParameters.FlightPattern = flightpath.Pattern(pattern)
	m.Status = mission.Status(st)
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	return m, nil
}

func missionArgs(m mission.Mission) ([]any, error) {
	area, err := json.Marshal(m.SurveyArea)
	if err != nil {
		return nil, err
	}
	sched, err := json.Marshal(m.Schedule)
	if err != nil {
		return nil, err
	}
	return []any{
		m.ID, m.Name, m.Description, string(area), m.FlightParameters.Altitude,
		m.FlightParameters.Speed, string(m.FlightParameters.FlightPattern), m.FlightParameters.Overlap,
		m.DroneID, string(sched), millis(m.Schedule.DateTime), string(m.Status),
		millis(m.CreatedAt), millis(m.UpdatedAt),
	}, nil
}

// CreateMission plans a mission. The drone must be available and free in the
// mission's window. Status defaults to scheduled; a missing duration is
// estimated from the flight path length and speed.
func (s *Store) CreateMission(ctx context.Context, m mission.Mission, opts ...flightpath.Option) (mission.Mission, error) {
	if m.Status == "" {
		m.Status = mission.StatusScheduled
	}
	if m.Status != mission.StatusDraft && m.Status != mission.StatusScheduled {
		return mission.Mission{}, fmt.Errorf("%w: new missions start as draft or scheduled", mission.ErrInvalidTransition)
	}
	if m.FlightParameters.FlightPattern == "" {
		m.FlightParameters.FlightPattern = flightpath.PatternGrid
	}
	if m.Schedule.Type == "" {
		m.Schedule.Type = mission.ScheduleOneTime
	}
	if err := m.Validate(); err != nil {
		return mission.Mission{}, err
	}
	if m.Schedule.DurationMinutes == 0 {
		d, err := mission.EstimateDuration(m, append(append([]flightpath.Option(nil), s.pathOpts...), opts...)...)
		if err != nil {
			return mission.Mission{}, err
		}
		m.Schedule.DurationMinutes = mission.DurationMinutes(d)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	err := s.withTx(ctx, func(q querier) error {
		if err := mission.CheckAssignment(ctx, view{s: s, q: q}, m); err != nil {
			return err
		}
		args, err := missionArgs(m)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, s.rebind(`INSERT INTO missions (`+missionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...); err != nil {
			return fmt.Errorf("insert mission: %w", err)
		}
		return nil
	})
	if err != nil {
		return mission.Mission{}, err
	}
	return m, nil
}

// GetMission returns a mission by id.
func (s *Store) GetMission(ctx context.Context, id string) (mission.Mission, error) {
	return s.getMission(ctx, s.db, id)
}

func (s *Store) getMission(ctx context.Context, q querier, id string) (mission.Mission, error) {
	m, err := scanMission(q.QueryRowContext(ctx, s.rebind(`SELECT `+missionColumns+` FROM missions WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("mission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("read mission: %w", err)
	}
	return m, nil
}

// ListMissions returns missions ordered by scheduled time, optionally
// restricted to the given statuses.
func (s *Store) ListMissions(ctx context.Context, statuses ...mission.Status) ([]mission.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY scheduled_at, id`
	return s.queryMissions(ctx, s.db, query, args...)
}

// MissionsForDrone returns every mission booked on a drone.
func (s *Store) MissionsForDrone(ctx context.Context, droneID string) ([]mission.Mission, error) {
	return s.missionsForDrone(ctx, s.db, droneID)
}

func (s *Store) missionsForDrone(ctx context.Context, q querier, droneID string) ([]mission.Mission, error) {
	return s.queryMissions(ctx, q, `SELECT `+missionColumns+` FROM missions WHERE drone_id = ? ORDER BY scheduled_at, id`, droneID)
}

func (s *Store) queryMissions(ctx context.Context, q querier, query string, args ...any) ([]mission.Mission, error) {
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()
	var out []mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMission removes a mission that is not in progress.
func (s *Store) DeleteMission(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		m, err := s.getMission(ctx, q, id)
		if err != nil {
			return err
		}
		if err := mission.CanDelete(m); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM missions WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete mission: %w", err)
		}
		return nil
	})
}

// UpdateMission applies a partial update under the edit guards. A status
// change flips the assigned drone in the same transaction.
func (s *Store) UpdateMission(ctx context.Context, id string, u mission.Update) (mission.Mission, error) {
	var out mission.Mission
	err := s.withTx(ctx, func(q querier) error {
		m, err := s.getMission(ctx, q, id)
		if err != nil {
			return err
		}
		from := m.Status
		ev, err := mission.ApplyUpdate(ctx, view{s: s, q: q}, &m, s.withEstimatedDuration(m, u), s.now().UTC())
		if err != nil {
			return err
		}
		args, err := missionArgs(m)
		if err != nil {
			return err
		}
		// id goes last for the WHERE clause
		args = append(args[1:], m.ID)
		if _, err := q.ExecContext(ctx, s.rebind(`UPDATE missions SET name = ?, description = ?, survey_area = ?,
			altitude = ?, speed = ?, flight_pattern = ?, overlap = ?, drone_id = ?, schedule = ?,
			scheduled_at = ?, status = ?, created_at = ?, updated_at = ? WHERE id = ?`), args...); err != nil {
			return fmt.Errorf("update mission: %w", err)
		}
		if ds, ok := mission.DroneEffect(ev); ok {
			if _, err := q.ExecContext(ctx, s.rebind(`UPDATE drones SET status = ?, updated_at = ? WHERE id = ?`),
				string(ds), millis(m.UpdatedAt), m.DroneID); err != nil {
				return fmt.Errorf("update drone status: %w", err)
			}
		}
		if ev != "" {
			logging.FromContext(ctx).Info("mission transition", "mission_id", m.ID, "from", from, "to", m.Status)
		}
		out = m
		return nil
	})
	return out, err
}

// withEstimatedDuration fills an open schedule duration in u from the flight
// path, as CreateMission does. When the survey area or flight parameters
// change, a stored duration that matches the old estimate is re-estimated;
// one set by hand is kept.
func (s *Store) withEstimatedDuration(m mission.Mission, u mission.Update) mission.Update {
	if u.Schedule != nil && u.Schedule.DurationMinutes != 0 {
		return u
	}
	if u.Schedule == nil {
		if u.SurveyArea == nil && u.FlightParameters == nil {
			return u
		}
		old, err := mission.EstimateDuration(m, s.pathOpts...)
		if err != nil || mission.DurationMinutes(old) != m.Schedule.DurationMinutes {
			return u
		}
	}
	next := m
	if u.SurveyArea != nil {
		next.SurveyArea = *u.SurveyArea
	}
	if u.FlightParameters != nil {
		next.FlightParameters = *u.FlightParameters
	}
	d, err := mission.EstimateDuration(next, s.pathOpts...)
	if err != nil {
		// ApplyUpdate reports the invalid geometry
		return u
	}
	sched := m.Schedule
	if u.Schedule != nil {
		sched = *u.Schedule
	}
	sched.DurationMinutes = mission.DurationMinutes(d)
	u.Schedule = &sched
	return u
}

// UpdateStatus is the status-only partial update issued by the monitor.
func (s *Store) UpdateStatus(ctx context.Context, id string, status mission.Status) (mission.Mission, error) {
	return s.UpdateMission(ctx, id, mission.Update{Status: &status})
}
