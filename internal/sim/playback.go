package sim

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"surveyops/internal/telemetry"
)

// maxReplayBatch caps how many rows are buffered before a flush.
const maxReplayBatch = 500

// ReplayLog replays track rows from r to writer. A speed >0 accelerates playback.
// If speed <= 0, no artificial delay is inserted. Playback stops when ctx is done.
// Rows that are due at the same moment are handed to writers supporting
// WriteBatch in one call.
func ReplayLog(ctx context.Context, r io.Reader, writer TrackWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var (
		prev  time.Time
		batch []telemetry.TrackRow
	)
	for {
		var row telemetry.TrackRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return writeRows(writer, batch)
			}
			return err
		}
		if !prev.IsZero() && speed > 0 {
			diff := row.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				if err := writeRows(writer, batch); err != nil {
					return err
				}
				batch = nil
				select {
				case <-time.After(diff):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		batch = append(batch, row)
		if len(batch) >= maxReplayBatch {
			if err := writeRows(writer, batch); err != nil {
				return err
			}
			batch = nil
		}
		prev = row.Timestamp
	}
}

func writeRows(w TrackWriter, rows []telemetry.TrackRow) error {
	if len(rows) == 0 {
		return nil
	}
	if bw, ok := w.(batchTrackWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// ReplayLogFile opens a file and replays its track rows.
func ReplayLogFile(ctx context.Context, path string, writer TrackWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
