package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"surveyops/internal/telemetry"
)

// JSONStdoutWriter prints track rows and mission events as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a track row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.TrackRow) error {
	return w.print(row)
}

// WriteBatch outputs multiple track rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.TrackRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteMissionEvent outputs a mission transition in JSON format.
func (w *JSONStdoutWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	return w.print(e)
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
