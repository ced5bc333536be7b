package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"surveyops/internal/mission"
)

const droneColumns = `id, name, serial_number, model, status, battery_level, max_flight_time, location, health_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrone(r rowScanner) (mission.Drone, error) {
	var (
		d                mission.Drone
		status           string
		location         sql.NullString
		created, updated int64
	)
	if err := r.Scan(&d.ID, &d.Name, &d.SerialNumber, &d.Model, &status, &d.BatteryLevel,
		&d.MaxFlightTime, &location, &d.HealthStatus, &created, &updated); err != nil {
		return d, err
	}
	d.Status = mission.DroneStatus(status)
	if location.Valid && location.String != "" {
		var loc mission.Location
		if err := json.Unmarshal([]byte(location.String), &loc); err != nil {
			return d, fmt.Errorf("decode location of drone %s: %w", d.ID, err)
		}
		d.Location = &loc
	}
	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return d, nil
}

func encodeLocation(loc *mission.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// CreateDrone registers a drone. Status defaults to available.
func (s *Store) CreateDrone(ctx context.Context, d mission.Drone) (mission.Drone, error) {
	if d.Status == "" {
		d.Status = mission.DroneAvailable
	}
	if err := d.Validate(); err != nil {
		return mission.Drone{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := s.now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	loc, err := encodeLocation(d.Location)
	if err != nil {
		return mission.Drone{}, err
	}
	err = s.withTx(ctx, func(q querier) error {
		if err := s.checkSerial(ctx, q, d.SerialNumber, ""); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, s.rebind(`INSERT INTO drones (`+droneColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			d.ID, d.Name, d.SerialNumber, d.Model, string(d.Status), d.BatteryLevel, d.MaxFlightTime,
			loc, d.HealthStatus, millis(d.CreatedAt), millis(d.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert drone: %w", err)
		}
		return nil
	})
	if err != nil {
		return mission.Drone{}, err
	}
	return d, nil
}

func (s *Store) checkSerial(ctx context.Context, q querier, serial, exceptID string) error {
	var id string
	err := q.QueryRowContext(ctx, s.rebind(`SELECT id FROM drones WHERE serial_number = ?`), serial).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("check serial number: %w", err)
	case id != exceptID:
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return nil
}

// GetDrone returns a drone by id.
func (s *Store) GetDrone(ctx context.Context, id string) (mission.Drone, error) {
	return s.getDrone(ctx, s.db, id)
}

func (s *Store) getDrone(ctx context.Context, q querier, id string) (mission.Drone, error) {
	d, err := scanDrone(q.QueryRowContext(ctx, s.rebind(`SELECT `+droneColumns+` FROM drones WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("drone %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return d, fmt.Errorf("read drone: %w", err)
	}
	return d, nil
}

// ListDrones returns all drones ordered by name.
func (s *Store) ListDrones(ctx context.Context) ([]mission.Drone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+droneColumns+` FROM drones ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list drones: %w", err)
	}
	defer rows.Close()
	var out []mission.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDrone replaces the editable drone fields.
func (s *Store) UpdateDrone(ctx context.Context, d mission.Drone) (mission.Drone, error) {
	if err := d.Validate(); err != nil {
		return mission.Drone{}, err
	}
	loc, err := encodeLocation(d.Location)
	if err != nil {
		return mission.Drone{}, err
	}
	var out mission.Drone
	err = s.withTx(ctx, func(q querier) error {
		cur, err := s.getDrone(ctx, q, d.ID)
		if err != nil {
			return err
		}
		if err := s.checkSerial(ctx, q, d.SerialNumber, d.ID); err != nil {
			return err
		}
		d.CreatedAt = cur.CreatedAt
		d.UpdatedAt = s.now().UTC()
		_, err = q.ExecContext(ctx, s.rebind(`UPDATE drones SET name = ?, serial_number = ?, model = ?, status = ?,
			battery_level = ?, max_flight_time = ?, location = ?, health_status = ?, updated_at = ? WHERE id = ?`),
			d.Name, d.SerialNumber, d.Model, string(d.Status), d.BatteryLevel, d.MaxFlightTime,
			loc, d.HealthStatus, millis(d.UpdatedAt), d.ID)
		if err != nil {
			return fmt.Errorf("update drone: %w", err)
		}
		out = d
		return nil
	})
	return out, err
}

// UpdateDroneLocation stores the last known position reported by the map.
func (s *Store) UpdateDroneLocation(ctx context.Context, id string, loc mission.Location) (mission.Drone, error) {
	var out mission.Drone
	err := s.withTx(ctx, func(q querier) error {
		d, err := s.getDrone(ctx, q, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if loc.UpdatedAt.IsZero() {
			loc.UpdatedAt = now
		}
		d.Location = &loc
		d.UpdatedAt = now
		enc, err := encodeLocation(d.Location)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, s.rebind(`UPDATE drones SET location = ?, updated_at = ? WHERE id = ?`),
			enc, millis(now), id); err != nil {
			return fmt.Errorf("update drone location: %w", err)
		}
		out = d
		return nil
	})
	return out, err
}

// DeleteDrone removes a drone unless an active mission still books it.
func (s *Store) DeleteDrone(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := s.getDrone(ctx, q, id); err != nil {
			return err
		}
		var n int
		err := q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM missions WHERE drone_id = ? AND status IN (?, ?)`),
			id, string(mission.StatusScheduled), string(mission.StatusInProgress)).Scan(&n)
		if err != nil {
			return fmt.Errorf("count drone missions: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d mission(s)", ErrDroneAssigned, n)
		}
		if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM drones WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete drone: %w", err)
		}
		return nil
	})
}

// AvailableDrones returns available drones with no active mission overlapping sched.
func (s *Store) AvailableDrones(ctx context.Context, sched mission.Schedule) ([]mission.Drone, error) {
	drones, err := s.ListDrones(ctx)
	if err != nil {
		return nil, err
	}
	var out []mission.Drone
	for _, d := range drones {
		if d.Status != mission.DroneAvailable {
			continue
		}
		probe := mission.Mission{DroneID: d.ID, Schedule: sched}
		err := mission.CheckSchedule(ctx, view{s: s, q: s.db}, probe)
		if errors.Is(err, mission.ErrScheduleConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// view answers mission.Availability inside a transaction.
type view struct {
	s *Store
	q querier
}

func (v view) GetDrone(ctx context.Context, id string) (mission.Drone, error) {
	return v.s.getDrone(ctx, v.q, id)
}

func (v view) MissionsForDrone(ctx context.Context, droneID string) ([]mission.Mission, error) {
	return v.s.missionsForDrone(ctx, v.q, droneID)
}
