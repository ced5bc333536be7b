package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"surveyops/internal/config"
	"surveyops/internal/mission"
	"surveyops/internal/sim"
	"surveyops/internal/telemetry"
)

func fakeTerminal(t *testing.T, tty bool) {
	t.Helper()
	prev := isTerminal
	isTerminal = func(*os.File) bool { return tty }
	t.Cleanup(func() { isTerminal = prev })
}

func TestBuildWritersStdout(t *testing.T) {
	fakeTerminal(t, false)
	ws, err := buildWriters(context.Background(), config.Default(), []string{"stdout"}, nil)
	if err != nil {
		t.Fatalf("buildWriters returned error: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("expected 1 writer, got %d", len(ws))
	}
	if _, ok := ws[0].(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", ws[0])
	}
}

func TestBuildWritersColorOnTerminal(t *testing.T) {
	fakeTerminal(t, true)
	ws, err := buildWriters(context.Background(), config.Default(), []string{"stdout", "json"}, nil)
	if err != nil {
		t.Fatalf("buildWriters returned error: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("expected stdout outputs to collapse into 1 writer, got %d", len(ws))
	}
	if _, ok := ws[0].(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sim.ColorStdoutWriter, got %T", ws[0])
	}
}

func TestBuildWritersTUIFallback(t *testing.T) {
	fakeTerminal(t, false)
	ws, err := buildWriters(context.Background(), config.Default(), []string{"tui"}, nil)
	if err != nil {
		t.Fatalf("buildWriters returned error: %v", err)
	}
	if _, ok := ws[0].(*sim.JSONStdoutWriter); !ok || len(ws) != 1 {
		t.Fatalf("expected JSON fallback, got %T (%d writers)", ws[0], len(ws))
	}
}

func TestBuildWritersSkipsUnconfiguredSinks(t *testing.T) {
	fakeTerminal(t, false)
	c := config.Default()
	c.Output.GreptimeEndpoint = ""
	c.Output.RedisAddr = ""
	ws, err := buildWriters(context.Background(), c, []string{"greptime", "redis"}, nil)
	if err != nil {
		t.Fatalf("buildWriters returned error: %v", err)
	}
	if len(ws) != 0 {
		t.Fatalf("expected no writers, got %d", len(ws))
	}
}

func TestBuildWritersUnknown(t *testing.T) {
	if _, err := buildWriters(context.Background(), config.Default(), []string{"fax"}, nil); err == nil {
		t.Fatal("expected error for unknown output")
	}
}

func TestNewWritersFile(t *testing.T) {
	fakeTerminal(t, false)
	dir := t.TempDir()
	c := config.Default()
	c.Output.TrackFile = filepath.Join(dir, "tracks.jsonl")
	c.Output.EventFile = filepath.Join(dir, "events.jsonl")

	mw, cleanup, err := newWriters(context.Background(), c, []string{"file"}, nil)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if err := mw.Write(telemetry.TrackRow{MissionID: "m1", DroneID: "d1", Timestamp: time.Now()}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := mw.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "completed"}); err != nil {
		t.Fatalf("write event failed: %v", err)
	}
	cleanup()

	for _, p := range []string{c.Output.TrackFile, c.Output.EventFile} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}
}

func TestFinishWatcher(t *testing.T) {
	done := make(chan telemetry.MissionEventRow, 1)
	w := finishWatcher{id: "m1", done: done}
	_ = w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m2", To: "completed"})
	_ = w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "completed", Error: "boom"})
	_ = w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "in-progress"})
	select {
	case ev := <-done:
		t.Fatalf("unexpected signal: %+v", ev)
	default:
	}
	_ = w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "aborted"})
	_ = w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "completed"})
	if ev := <-done; ev.To != "aborted" {
		t.Fatalf("expected aborted, got %s", ev.To)
	}
}

type downEvents struct{}

func (downEvents) WriteMissionEvent(telemetry.MissionEventRow) error {
	return errors.New("greptime: unavailable")
}

func TestFinishWatcherSurvivesFailingWriter(t *testing.T) {
	done := make(chan telemetry.MissionEventRow, 1)
	for _, ews := range [][]sim.MissionEventWriter{
		{finishWatcher{id: "m1", done: done}, downEvents{}},
		{downEvents{}, finishWatcher{id: "m1", done: done}},
	} {
		mw := sim.NewMultiWriter(nil, ews)
		if err := mw.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "completed"}); err == nil {
			t.Fatal("expected the writer error to surface")
		}
		select {
		case ev := <-done:
			if ev.To != "completed" {
				t.Fatalf("unexpected signal: %+v", ev)
			}
		default:
			t.Fatal("watcher not signalled when another event writer failed")
		}
	}
}

func TestPickMission(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	ms := []mission.Mission{
		{ID: "later", Status: mission.StatusScheduled, Schedule: mission.Schedule{DateTime: future}},
		{ID: "due", Status: mission.StatusScheduled, Schedule: mission.Schedule{DateTime: past}},
	}
	if got := pickMission(ms); got != "due" {
		t.Fatalf("pickMission = %q, want due", got)
	}
	ms = append(ms, mission.Mission{ID: "live", Status: mission.StatusInProgress})
	if got := pickMission(ms); got != "live" {
		t.Fatalf("pickMission = %q, want live", got)
	}
	if got := pickMission(ms[:1]); got != "" {
		t.Fatalf("pickMission = %q, want none", got)
	}
}
