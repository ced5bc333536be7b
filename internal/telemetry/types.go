// Telemetry rows emitted by the simulation, with greptime tags
package telemetry

import (
	"os"
	"time"
)

// TrackRow is one simulated position of a mission's drone.
type TrackRow struct {
	MissionID         string    `json:"mission_id" msgpack:"mission_id"`                 // TAG
	DroneID           string    `json:"drone_id" msgpack:"drone_id"`                     // TAG
	Lng               float64   `json:"lng" msgpack:"lng"`                               // FIELD
	Lat               float64   `json:"lat" msgpack:"lat"`                               // FIELD
	Alt               float64   `json:"alt" msgpack:"alt"`                               // FIELD
	StepIndex         int       `json:"step_index" msgpack:"step_index"`                 // FIELD
	PathLength        int       `json:"path_length" msgpack:"path_length"`               // FIELD
	CompletionPercent int       `json:"completion_percent" msgpack:"completion_percent"` // FIELD
	Timestamp         time.Time `json:"ts" msgpack:"ts"`                                 // TIME INDEX
}

// MissionEventRow records a mission status transition.
type MissionEventRow struct {
	MissionID string    `json:"mission_id" msgpack:"mission_id"` // TAG
	DroneID   string    `json:"drone_id" msgpack:"drone_id"`     // TAG
	Event     string    `json:"event" msgpack:"event"`           // FIELD
	From      string    `json:"from" msgpack:"from"`             // FIELD
	To        string    `json:"to" msgpack:"to"`                 // FIELD
	Error     string    `json:"error,omitempty" msgpack:"error"` // FIELD
	Timestamp time.Time `json:"ts" msgpack:"ts"`                 // TIME INDEX
}

// TrackTableName holds the GreptimeDB table for track rows. It defaults to
// "mission_track" and can be overridden with GREPTIMEDB_TRACK_TABLE.
var TrackTableName = envOr("GREPTIMEDB_TRACK_TABLE", "mission_track")

// EventTableName holds the GreptimeDB table for mission events. It defaults
// to "mission_events" and can be overridden with GREPTIMEDB_EVENT_TABLE.
var EventTableName = envOr("GREPTIMEDB_EVENT_TABLE", "mission_events")

func envOr(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

func (TrackRow) TableName() string { return TrackTableName }

func (MissionEventRow) TableName() string { return EventTableName }
