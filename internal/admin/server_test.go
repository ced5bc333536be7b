package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"surveyops/internal/flightpath"
	"surveyops/internal/mission"
	"surveyops/internal/monitor"
	"surveyops/internal/sim"
	"surveyops/internal/store"
	"surveyops/internal/telemetry"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeService struct {
	mu       sync.Mutex
	missions []mission.Mission
}

func (f *fakeService) ListMissions(context.Context, ...mission.Status) ([]mission.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mission.Mission(nil), f.missions...), nil
}

func (f *fakeService) GetMission(_ context.Context, id string) (mission.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.missions {
		if m.ID == id {
			return m, nil
		}
	}
	return mission.Mission{}, fmt.Errorf("mission %s: %w", id, store.ErrNotFound)
}

func (f *fakeService) UpdateStatus(_ context.Context, id string, st mission.Status) (mission.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.missions {
		if f.missions[i].ID == id {
			f.missions[i].Status = st
			return f.missions[i], nil
		}
	}
	return mission.Mission{}, store.ErrNotFound
}

type fakeFleet struct {
	drones map[string]mission.Drone
}

func (f *fakeFleet) ListDrones(context.Context) ([]mission.Drone, error) {
	var out []mission.Drone
	for _, d := range f.drones {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeFleet) UpdateDroneLocation(_ context.Context, id string, loc mission.Location) (mission.Drone, error) {
	d, ok := f.drones[id]
	if !ok {
		return d, fmt.Errorf("drone %s: %w", id, store.ErrNotFound)
	}
	d.Location = &loc
	f.drones[id] = d
	return d, nil
}

type stillTicker struct{ c chan time.Time }

func (t stillTicker) C() <-chan time.Time { return t.c }
func (t stillTicker) Stop()               {}

func testMission(id string, st mission.Status, at time.Time) mission.Mission {
	return mission.Mission{
		ID:         id,
		Name:       "survey " + id,
		SurveyArea: mission.NewSurveyArea(orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}),
		FlightParameters: mission.FlightParameters{
			Altitude: 50, Speed: 10, FlightPattern: flightpath.PatternGrid, Overlap: 70,
		},
		DroneID:  "d1",
		Schedule: mission.Schedule{Type: mission.ScheduleOneTime, DateTime: at, DurationMinutes: 20},
		Status:   st,
	}
}

func newTestServer(t *testing.T) (*Server, *fakeFleet) {
	t.Helper()
	svc := &fakeService{missions: []mission.Mission{
		testMission("past", mission.StatusScheduled, now.Add(-time.Hour)),
		testMission("future", mission.StatusScheduled, now.Add(time.Hour)),
		testMission("done", mission.StatusCompleted, now.Add(-24*time.Hour)),
	}}
	mon := monitor.New(svc, nil,
		monitor.WithClock(func() time.Time { return now }),
		monitor.WithPathOptions(flightpath.WithResolution(4)),
		monitor.WithDriverOptions(sim.WithTicker(func(time.Duration) sim.Ticker { return stillTicker{c: make(chan time.Time)} })),
	)
	if err := mon.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	t.Cleanup(mon.Stop)
	fleet := &fakeFleet{drones: map[string]mission.Drone{"d1": {ID: "d1", Name: "alpha"}}}
	return NewServer(mon, fleet, NewFeed(), WithPathOptions(flightpath.WithResolution(4))), fleet
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMissionsEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/missions", "")
	var all []mission.Mission
	if err := json.NewDecoder(w.Body).Decode(&all); err != nil || len(all) != 3 {
		t.Fatalf("GET /missions = %d missions, %v", len(all), err)
	}

	w = do(t, h, http.MethodGet, "/missions?status=completed", "")
	var done []mission.Mission
	if err := json.NewDecoder(w.Body).Decode(&done); err != nil || len(done) != 1 || done[0].ID != "done" {
		t.Fatalf("status filter returned %+v, %v", done, err)
	}
	if w := do(t, h, http.MethodGet, "/missions?status=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/missions/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown mission = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/missions/past", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /missions/past = %d", w.Code)
	}
}

func TestTransitions(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	if w := do(t, h, http.MethodPost, "/missions/future/start", ""); w.Code != http.StatusConflict {
		t.Fatalf("early start = %d, want 409", w.Code)
	}
	w := do(t, h, http.MethodPost, "/missions/past/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body)
	}

	w = do(t, h, http.MethodGet, "/map-data", "")
	var md monitor.MapData
	if err := json.NewDecoder(w.Body).Decode(&md); err != nil {
		t.Fatalf("decode map data: %v", err)
	}
	if md.MissionID != "past" || md.DronePosition == nil || len(md.FlightPath) < 2 || md.SurveyArea == nil {
		t.Fatalf("unexpected map data: %+v", md)
	}

	if w := do(t, h, http.MethodPost, "/missions/past/abort", ""); w.Code != http.StatusOK {
		t.Fatalf("abort = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/missions/past/complete", ""); w.Code != http.StatusConflict {
		t.Fatalf("complete after abort = %d, want 409", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/missions/past/launch", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown action = %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/missions/future/select", "")
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&md); err != nil || md.DronePosition != nil || md.MissionID != "future" {
		t.Fatalf("select map data = %+v, %v", md, err)
	}
}

func TestSurveyAreaPreview(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	body := `{"polygon":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]},"pattern":"grid","altitude":50}`

	w := do(t, h, http.MethodPost, "/survey-area", body)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") != "miss" {
		t.Fatalf("first preview = %d cache=%q", w.Code, w.Header().Get("X-Cache"))
	}
	var p Preview
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if p.Bounds.MinLng != 0 || p.Bounds.MaxLat != 1 || p.AreaKm2 <= 0 || p.PathLengthMeters <= 0 {
		t.Fatalf("unexpected preview: %+v", p)
	}
	home := flightpath.Waypoint{Lng: 0, Lat: 0, Altitude: 50}
	if p.FlightPath[0] != home || p.FlightPath[len(p.FlightPath)-1] != home {
		t.Fatalf("preview path not closed at home")
	}

	w = do(t, h, http.MethodPost, "/survey-area", body)
	if w.Header().Get("X-Cache") != "hit" {
		t.Fatalf("second preview not cached")
	}

	bad := `{"polygon":{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,0]]]}}`
	if w := do(t, h, http.MethodPost, "/survey-area", bad); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("degenerate polygon = %d", w.Code)
	}
	unknown := `{"polygon":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]},"pattern":"zigzag"}`
	if w := do(t, h, http.MethodPost, "/survey-area", unknown); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown pattern = %d", w.Code)
	}
}

func TestLocation(t *testing.T) {
	s, fleet := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/location", `{"droneId":"d1","lng":16.37,"lat":48.2,"locationName":"Vienna"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("location = %d: %s", w.Code, w.Body)
	}
	if loc := fleet.drones["d1"].Location; loc == nil || loc.Name != "Vienna" {
		t.Fatalf("location not stored: %+v", loc)
	}
	if w := do(t, h, http.MethodPost, "/location", `{"droneId":"ghost","lng":1,"lat":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown drone = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/location", `{"droneId":"d1","lng":200,"lat":1}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out of range = %d", w.Code)
	}
}

func TestReportsAndIndex(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/reports", "")
	var out struct {
		Summary mission.Summary  `json:"summary"`
		Reports []mission.Report `json:"reports"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if out.Summary.Total != 3 || len(out.Reports) != 1 || out.Reports[0].MissionID != "done" {
		t.Fatalf("unexpected reports: %+v", out)
	}

	w = do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "survey future") {
		t.Fatalf("index = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/drones", ""); w.Code != http.StatusOK {
		t.Fatalf("drones = %d", w.Code)
	}
}

func TestFeedPublishesEnvelopes(t *testing.T) {
	f := NewFeed()
	var got [][]byte
	f.publish = func(b []byte) { got = append(got, b) }

	if err := f.Write(telemetry.TrackRow{MissionID: "m1", CompletionPercent: 40}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", To: "completed"}); err != nil {
		t.Fatalf("WriteMissionEvent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	var env struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(got[0], &env); err != nil || env.Kind != "track" {
		t.Fatalf("first envelope = %s, %v", got[0], err)
	}
	if err := json.Unmarshal(got[1], &env); err != nil || env.Kind != "mission" {
		t.Fatalf("second envelope = %s, %v", got[1], err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", mission.ErrMissionLocked), http.StatusConflict},
		{flightpath.ErrDegeneratePolygon, http.StatusUnprocessableEntity},
		{store.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
