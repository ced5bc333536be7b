package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"surveyops/internal/mission"
	"surveyops/internal/telemetry"
)

func TestColorStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewColorStdoutWriter([]mission.Mission{squareMission("m1")})
	w.out = &buf
	row := telemetry.TrackRow{MissionID: "m1", DroneID: "d-m1", StepIndex: 2, PathLength: 5, CompletionPercent: 50, Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(row); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", Event: "abort", From: "in-progress", To: "aborted"}); err != nil {
		t.Fatalf("WriteMissionEvent: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "Missions:") != 1 {
		t.Fatalf("overview should print once:\n%s", out)
	}
	for _, want := range []string{"square m1", "step=2/4", "[#####.....] 50%", "in-progress -> "} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	if err := w.WriteBatch([]telemetry.TrackRow{{MissionID: "m1"}, {MissionID: "m2"}}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var r telemetry.TrackRow
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil || r.MissionID != "m2" {
		t.Fatalf("decode = %+v, %v", r, err)
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(100, 4); got != "[####]" {
		t.Fatalf("progressBar(100) = %q", got)
	}
	if got := progressBar(-5, 4); got != "[....]" {
		t.Fatalf("progressBar(-5) = %q", got)
	}
}
