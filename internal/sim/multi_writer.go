package sim

import (
	"errors"

	"surveyops/internal/telemetry"
)

// MultiWriter fans out track rows and mission events to multiple writers.
type MultiWriter struct {
	tracks []TrackWriter
	events []MissionEventWriter
}

// NewMultiWriter creates a new MultiWriter. Track writers that also
// implement MissionEventWriter receive events without being listed twice.
func NewMultiWriter(tws []TrackWriter, ews []MissionEventWriter) *MultiWriter {
	mw := &MultiWriter{tracks: tws, events: ews}
	for _, w := range tws {
		ew, ok := w.(MissionEventWriter)
		if !ok || containsEventWriter(ews, ew) {
			continue
		}
		mw.events = append(mw.events, ew)
	}
	return mw
}

func containsEventWriter(ws []MissionEventWriter, w MissionEventWriter) bool {
	for _, x := range ws {
		if x == w {
			return true
		}
	}
	return false
}

// Write sends a track row to all writers. A failing writer does not keep
// the row from the others; their errors are joined.
func (mw *MultiWriter) Write(row telemetry.TrackRow) error {
	var errs []error
	for _, w := range mw.tracks {
		if err := w.Write(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends multiple track rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.TrackRow) error {
	var errs []error
	for _, w := range mw.tracks {
		if bw, ok := w.(batchTrackWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// WriteMissionEvent sends a mission event to every event writer, even when
// an earlier one fails.
func (mw *MultiWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	var errs []error
	for _, w := range mw.events {
		if err := w.WriteMissionEvent(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetAdminStatus forwards the admin UI status to writers that display it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.tracks {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var first error
	for _, w := range mw.tracks {
		if c, ok := w.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
