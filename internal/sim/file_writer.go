package sim

import (
	"encoding/json"
	"os"
	"sync"

	"surveyops/internal/telemetry"
)

// FileWriter writes track rows and mission events to JSONL files.
type FileWriter struct {
	mu        sync.Mutex
	trackFile *os.File
	eventFile *os.File
	trackEnc  *json.Encoder
	eventEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. eventPath may be empty to skip the
// mission event log.
func NewFileWriter(trackPath, eventPath string) (*FileWriter, error) {
	tf, err := os.Create(trackPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{trackFile: tf, trackEnc: json.NewEncoder(tf)}
	if eventPath != "" {
		ef, err := os.Create(eventPath)
		if err != nil {
			tf.Close()
			return nil, err
		}
		fw.eventFile = ef
		fw.eventEnc = json.NewEncoder(ef)
	}
	return fw, nil
}

// Write logs a single track row.
func (f *FileWriter) Write(row telemetry.TrackRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackEnc.Encode(row)
}

// WriteBatch logs multiple track rows.
func (f *FileWriter) WriteBatch(rows []telemetry.TrackRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteMissionEvent logs a mission event row, if enabled.
func (f *FileWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	if f.eventEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventEnc.Encode(e)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.trackFile != nil {
		if e := f.trackFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.eventFile != nil {
		if e := f.eventFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
