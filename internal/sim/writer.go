package sim

import "surveyops/internal/telemetry"

// TrackWriter is an interface to support different output writers.
type TrackWriter interface {
	Write(telemetry.TrackRow) error
}

// Optional: writers can also support batch mode
type batchTrackWriter interface {
	WriteBatch([]telemetry.TrackRow) error
}

// MissionEventWriter handles mission status transitions.
type MissionEventWriter interface {
	WriteMissionEvent(telemetry.MissionEventRow) error
}

// AdminStatusWriter allows writers to receive admin UI status updates.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}
