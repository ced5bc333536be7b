package mission

import "errors"

var (
	// ErrMissionNotEditable is returned when fields change outside draft or scheduled.
	ErrMissionNotEditable = errors.New("mission not editable")
	// ErrMissionLocked is returned when anything but a terminal status update
	// targets an in-progress mission.
	ErrMissionLocked = errors.New("mission locked while in progress")
	// ErrDroneUnavailable is returned when the assigned drone is not available.
	ErrDroneUnavailable = errors.New("drone unavailable")
	// ErrScheduleConflict is returned when the drone is booked in an overlapping window.
	ErrScheduleConflict = errors.New("drone schedule conflict")
	// ErrStartTooEarly is returned when start fires before the scheduled time.
	ErrStartTooEarly = errors.New("mission cannot start before its scheduled time")
	// ErrInvalidTransition is returned for events not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid mission transition")
	// ErrMissionInProgress is returned when deleting a mission that is flying.
	ErrMissionInProgress = errors.New("mission in progress")
	// ErrInvalidParameters wraps field validation failures.
	ErrInvalidParameters = errors.New("invalid mission parameters")
)
