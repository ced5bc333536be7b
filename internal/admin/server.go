package admin

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"surveyops/internal/flightpath"
	"surveyops/internal/geo"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/monitor"
	"surveyops/internal/sim"
	"surveyops/internal/store"
)

// DefaultPreviewAltitude is used for survey-area previews without an altitude.
const DefaultPreviewAltitude = 100.0

// Fleet is the part of the store the dashboard reads and writes directly.
type Fleet interface {
	ListDrones(ctx context.Context) ([]mission.Drone, error)
	UpdateDroneLocation(ctx context.Context, id string, loc mission.Location) (mission.Drone, error)
}

// Server is the HTTP dashboard around a mission monitor.
type Server struct {
	mon      *monitor.Monitor
	fleet    Fleet
	feed     *Feed
	tpl      *template.Template
	previews *expirable.LRU[string, Preview]
	pathOpts []flightpath.Option
}

//go:embed templates/index.html
var content embed.FS

// Option configures a Server.
type Option func(*Server)

// WithPathOptions sets the resolution used for survey-area previews.
func WithPathOptions(opts ...flightpath.Option) Option {
	return func(s *Server) { s.pathOpts = append(s.pathOpts, opts...) }
}

// NewServer wires the dashboard. feed may be nil to disable /events.
func NewServer(mon *monitor.Monitor, fleet Fleet, feed *Feed, opts ...Option) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{
		mon:      mon,
		fleet:    fleet,
		feed:     feed,
		tpl:      tpl,
		previews: expirable.NewLRU[string, Preview](128, nil, time.Hour),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /missions", s.handleMissions)
	mux.HandleFunc("GET /missions/{id}", s.handleMission)
	mux.HandleFunc("POST /missions/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /missions/{id}/{action}", s.handleTransition)
	mux.HandleFunc("GET /map-data", s.handleMapData)
	mux.HandleFunc("POST /survey-area", s.handleSurveyArea)
	mux.HandleFunc("POST /location", s.handleLocation)
	mux.HandleFunc("GET /drones", s.handleDrones)
	mux.HandleFunc("GET /reports", s.handleReports)
	if s.feed != nil {
		mux.Handle("GET /events", s.feed)
	}
	return mux
}

// ListenAndServe serves the dashboard until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.FromContext(ctx).Info("dashboard listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	missions := s.mon.Missions()
	data := struct {
		Summary  mission.Summary
		Missions []mission.Mission
		Selected string
	}{
		Summary:  mission.Summarize(missions),
		Missions: missions,
		Selected: s.mon.Selected(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	missions := s.mon.Missions()
	if st := r.URL.Query().Get("status"); st != "" {
		want, err := mission.ParseStatus(st)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		filtered := missions[:0]
		for _, m := range missions {
			if m.Status == want {
				filtered = append(filtered, m)
			}
		}
		missions = filtered
	}
	writeJSON(w, http.StatusOK, missions)
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.mon.Mission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.mon.Select(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	s.handleMapData(w, r)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		m   mission.Mission
		err error
	)
	switch r.PathValue("action") {
	case "start":
		m, err = s.mon.Start(r.Context(), id)
	case "complete":
		m, err = s.mon.Complete(r.Context(), id)
	case "abort":
		m, err = s.mon.Abort(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	md, err := s.mon.MapData(r.Context())
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// Preview is the answer to a drawn survey polygon.
type Preview struct {
	Bounds           geo.Box               `json:"bounds"`
	AreaKm2          float64               `json:"areaKm2"`
	Area             string                `json:"area"`
	Pattern          flightpath.Pattern    `json:"pattern"`
	Altitude         float64               `json:"altitude"`
	FlightPath       []flightpath.Waypoint `json:"flightPath"`
	PathLengthMeters float64               `json:"pathLengthMeters"`
}

type surveyAreaRequest struct {
	Polygon  json.RawMessage `json:"polygon"`
	Pattern  string          `json:"pattern"`
	Altitude float64         `json:"altitude"`
}

func (s *Server) handleSurveyArea(w http.ResponseWriter, r *http.Request) {
	var req surveyAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	pattern, err := flightpath.ParsePattern(req.Pattern)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	if req.Altitude <= 0 {
		req.Altitude = DefaultPreviewAltitude
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, req.Polygon); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	key := fmt.Sprintf("%s|%s|%s", pattern, strconv.FormatFloat(req.Altitude, 'f', -1, 64), compact.String())
	if p, ok := s.previews.Get(key); ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, p)
		return
	}

	p, err := s.preview(compact.Bytes(), pattern, req.Altitude)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	s.previews.Add(key, p)
	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) preview(polygon []byte, pattern flightpath.Pattern, alt float64) (Preview, error) {
	ring, err := geo.ParsePolygon(polygon)
	if err != nil {
		return Preview{}, err
	}
	box, err := geo.BoundingBox(ring)
	if err != nil {
		return Preview{}, err
	}
	path, err := flightpath.Generate(ring, pattern, alt, s.pathOpts...)
	if err != nil {
		return Preview{}, err
	}
	area := geo.EstimateArea(ring)
	return Preview{
		Bounds:           box,
		AreaKm2:          area,
		Area:             geo.FormatArea(area),
		Pattern:          pattern,
		Altitude:         alt,
		FlightPath:       path,
		PathLengthMeters: geo.PathLength(flightpath.LineString(path)),
	}, nil
}

type locationRequest struct {
	DroneID string  `json:"droneId"`
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
	Name    string  `json:"locationName"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.DroneID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("droneId is required"))
		return
	}
	if req.Lng < -180 || req.Lng > 180 || req.Lat < -90 || req.Lat > 90 {
		writeError(w, r, http.StatusUnprocessableEntity, fmt.Errorf("%w: position out of range", geo.ErrInvalidGeometry))
		return
	}
	d, err := s.fleet.UpdateDroneLocation(r.Context(), req.DroneID, mission.Location{Lng: req.Lng, Lat: req.Lat, Name: req.Name})
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDrones(w http.ResponseWriter, r *http.Request) {
	drones, err := s.fleet.ListDrones(r.Context())
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, drones)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	missions := s.mon.Missions()
	out := struct {
		Summary mission.Summary  `json:"summary"`
		Reports []mission.Report `json:"reports"`
	}{Summary: mission.Summarize(missions), Reports: []mission.Report{}}
	for _, m := range missions {
		if m.Status != mission.StatusCompleted {
			continue
		}
		rep, err := mission.NewReport(m, s.pathOpts...)
		if err != nil {
			logging.FromContext(r.Context()).Error("mission report failed", "mission_id", m.ID, "err", err)
			continue
		}
		out.Reports = append(out.Reports, rep)
	}
	writeJSON(w, http.StatusOK, out)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrUnknownMission), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mission.ErrStartTooEarly),
		errors.Is(err, mission.ErrInvalidTransition),
		errors.Is(err, mission.ErrMissionLocked),
		errors.Is(err, mission.ErrMissionNotEditable),
		errors.Is(err, mission.ErrDroneUnavailable),
		errors.Is(err, mission.ErrScheduleConflict),
		errors.Is(err, sim.ErrSimulationAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, geo.ErrInvalidGeometry),
		errors.Is(err, flightpath.ErrDegeneratePolygon),
		errors.Is(err, flightpath.ErrUnknownPattern),
		errors.Is(err, mission.ErrInvalidParameters):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
