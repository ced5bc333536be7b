package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"surveyops/internal/telemetry"
)

func encodeRows(t *testing.T, rows []telemetry.TrackRow) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func TestReplayLog(t *testing.T) {
	rows := []telemetry.TrackRow{
		{MissionID: "m1", DroneID: "d1", StepIndex: 0, Timestamp: time.Unix(0, 0)},
		{MissionID: "m1", DroneID: "d1", StepIndex: 1, Timestamp: time.Unix(1, 0)},
	}
	cw := &collectWriter{}
	if err := ReplayLog(context.Background(), encodeRows(t, rows), cw, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	got := cw.tracks()
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	for i, r := range rows {
		if got[i].StepIndex != r.StepIndex {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, got[i], r)
		}
	}
}

func TestReplayLogCancelled(t *testing.T) {
	rows := []telemetry.TrackRow{
		{MissionID: "m1", Timestamp: time.Unix(0, 0)},
		{MissionID: "m1", Timestamp: time.Unix(3600, 0)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cw := &collectWriter{}
	err := ReplayLog(ctx, encodeRows(t, rows), cw, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(cw.tracks()) != 1 {
		t.Fatalf("expected only the first row before the delay, got %d", len(cw.tracks()))
	}
}

type batchRecorder struct {
	collectWriter
	batches [][]telemetry.TrackRow
}

func (b *batchRecorder) WriteBatch(rows []telemetry.TrackRow) error {
	b.batches = append(b.batches, append([]telemetry.TrackRow(nil), rows...))
	return nil
}

func TestReplayLogBatchesSimultaneousRows(t *testing.T) {
	t0 := time.Unix(0, 0)
	t1 := t0.Add(time.Millisecond)
	rows := []telemetry.TrackRow{
		{MissionID: "m1", StepIndex: 0, Timestamp: t0},
		{MissionID: "m2", StepIndex: 0, Timestamp: t0},
		{MissionID: "m1", StepIndex: 1, Timestamp: t1},
		{MissionID: "m2", StepIndex: 1, Timestamp: t1},
		{MissionID: "m3", StepIndex: 1, Timestamp: t1},
	}
	bw := &batchRecorder{}
	if err := ReplayLog(context.Background(), encodeRows(t, rows), bw, 1000); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(bw.tracks()) != 0 {
		t.Fatalf("batch writer received %d single writes", len(bw.tracks()))
	}
	if len(bw.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(bw.batches))
	}
	if len(bw.batches[0]) != 2 || len(bw.batches[1]) != 3 {
		t.Fatalf("batch sizes = %d/%d, want 2/3", len(bw.batches[0]), len(bw.batches[1]))
	}
}

func TestReplayLogNoDelaySingleBatch(t *testing.T) {
	rows := []telemetry.TrackRow{
		{MissionID: "m1", StepIndex: 0, Timestamp: time.Unix(0, 0)},
		{MissionID: "m1", StepIndex: 1, Timestamp: time.Unix(5, 0)},
		{MissionID: "m1", StepIndex: 2, Timestamp: time.Unix(10, 0)},
	}
	bw := &batchRecorder{}
	if err := ReplayLog(context.Background(), encodeRows(t, rows), bw, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(bw.batches) != 1 || len(bw.batches[0]) != 3 {
		t.Fatalf("batches = %v", bw.batches)
	}
	if bw.batches[0][2].StepIndex != 2 {
		t.Fatalf("rows out of order: %+v", bw.batches[0])
	}
}
