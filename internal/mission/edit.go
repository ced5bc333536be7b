package mission

import (
	"context"
	"fmt"
	"time"
)

// Update is a partial mission update. Nil fields are left unchanged.
type Update struct {
	Name             *string           `json:"name,omitempty"`
	Description      *string           `json:"description,omitempty"`
	SurveyArea       *SurveyArea       `json:"surveyArea,omitempty"`
	FlightParameters *FlightParameters `json:"flightParameters,omitempty"`
	DroneID          *string           `json:"drone,omitempty"`
	Schedule         *Schedule         `json:"schedule,omitempty"`
	Status           *Status           `json:"status,omitempty"`
}

// StatusOnly reports whether the update carries nothing but a status.
func (u Update) StatusOnly() bool {
	return u.Status != nil && !u.changesFields()
}

func (u Update) changesFields() bool {
	return u.Name != nil || u.Description != nil || u.SurveyArea != nil ||
		u.FlightParameters != nil || u.DroneID != nil || u.Schedule != nil
}

// Availability answers drone booking questions for the edit guards.
type Availability interface {
	GetDrone(ctx context.Context, id string) (Drone, error)
	MissionsForDrone(ctx context.Context, droneID string) ([]Mission, error)
}

// CheckDrone fails with ErrDroneUnavailable unless the drone is available.
func CheckDrone(ctx context.Context, av Availability, droneID string) error {
	d, err := av.GetDrone(ctx, droneID)
	if err != nil {
		return err
	}
	if d.Status != DroneAvailable {
		return fmt.Errorf("%w: %s is %s", ErrDroneUnavailable, d.Name, d.Status)
	}
	return nil
}

// CheckSchedule fails with ErrScheduleConflict when another active mission of
// the same drone overlaps m's window.
func CheckSchedule(ctx context.Context, av Availability, m Mission) error {
	others, err := av.MissionsForDrone(ctx, m.DroneID)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.ID == m.ID || !o.Status.Active() {
			continue
		}
		if Overlaps(m.Schedule, o.Schedule) {
			return fmt.Errorf("%w: overlaps mission %q", ErrScheduleConflict, o.Name)
		}
	}
	return nil
}

// CheckAssignment runs both drone guards.
func CheckAssignment(ctx context.Context, av Availability, m Mission) error {
	if err := CheckDrone(ctx, av, m.DroneID); err != nil {
		return err
	}
	return CheckSchedule(ctx, av, m)
}

// ApplyUpdate validates u against m's status and applies it in place. It
// returns the event fired by a status change, or "" when the status did not
// change. m is left untouched on error.
func ApplyUpdate(ctx context.Context, av Availability, m *Mission, u Update, now time.Time) (Event, error) {
	switch m.Status {
	case StatusInProgress:
		if !u.StatusOnly() {
			return "", fmt.Errorf("%w: only status may change", ErrMissionLocked)
		}
		if *u.Status != StatusCompleted && *u.Status != StatusAborted {
			return "", fmt.Errorf("%w: cannot move to %s", ErrMissionLocked, *u.Status)
		}
	case StatusDraft, StatusScheduled:
	default:
		return "", fmt.Errorf("%w: mission is %s", ErrMissionNotEditable, m.Status)
	}

	next := *m
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.SurveyArea != nil {
		next.SurveyArea = *u.SurveyArea
	}
	if u.FlightParameters != nil {
		next.FlightParameters = *u.FlightParameters
	}
	if u.DroneID != nil {
		next.DroneID = *u.DroneID
	}
	if u.Schedule != nil {
		next.Schedule = *u.Schedule
	}
	if u.changesFields() {
		if err := next.Validate(); err != nil {
			return "", err
		}
		if next.DroneID != m.DroneID {
			if err := CheckDrone(ctx, av, next.DroneID); err != nil {
				return "", err
			}
		}
		if next.DroneID != m.DroneID || u.Schedule != nil {
			if err := CheckSchedule(ctx, av, next); err != nil {
				return "", err
			}
		}
		next.UpdatedAt = now
	}

	var ev Event
	if u.Status != nil && *u.Status != next.Status {
		var err error
		if ev, err = EventFor(next.Status, *u.Status); err != nil {
			return "", err
		}
		if err := Fire(&next, nil, ev, now); err != nil {
			return "", err
		}
	}
	*m = next
	return ev, nil
}
