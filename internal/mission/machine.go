package mission

import (
	"fmt"
	"time"
)

// Event drives a status transition.
type Event string

const (
	EventSchedule Event = "schedule"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventAbort    Event = "abort"
	EventCancel   Event = "cancel"
)

type edge struct {
	from Status
	ev   Event
}

var transitions = map[edge]Status{
	{StatusDraft, EventSchedule}:      StatusScheduled,
	{StatusScheduled, EventStart}:     StatusInProgress,
	{StatusScheduled, EventCancel}:    StatusCancelled,
	{StatusInProgress, EventComplete}: StatusCompleted,
	{StatusInProgress, EventAbort}:    StatusAborted,
}

// Next returns the status reached by firing ev from s.
func Next(s Status, ev Event) (Status, error) {
	to, ok := transitions[edge{s, ev}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, s)
	}
	return to, nil
}

// EventFor returns the event that moves a mission from one status to another.
func EventFor(from, to Status) (Event, error) {
	for e, target := range transitions {
		if e.from == from && target == to {
			return e.ev, nil
		}
	}
	return "", fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

// DroneEffect returns the drone status implied by an event, if any.
func DroneEffect(ev Event) (DroneStatus, bool) {
	switch ev {
	case EventStart:
		return DroneInMission, true
	case EventComplete, EventAbort:
		return DroneAvailable, true
	}
	return "", false
}

// Fire applies ev to m and flips d's availability. All guards are checked
// before either record is touched. d may be nil when the caller mirrors the
// drone side effect elsewhere.
func Fire(m *Mission, d *Drone, ev Event, now time.Time) error {
	to, err := Next(m.Status, ev)
	if err != nil {
		return err
	}
	if ev == EventStart && now.Before(m.Schedule.DateTime) {
		return fmt.Errorf("%w: scheduled for %s", ErrStartTooEarly, m.Schedule.DateTime.Format(time.RFC3339))
	}

	m.Status = to
	m.UpdatedAt = now
	if ds, ok := DroneEffect(ev); ok && d != nil {
		d.Status = ds
		d.UpdatedAt = now
	}
	return nil
}

// CanDelete reports whether the mission may be removed.
func CanDelete(m Mission) error {
	if m.Status == StatusInProgress {
		return fmt.Errorf("%w: %s", ErrMissionInProgress, m.ID)
	}
	return nil
}
