package admin

import (
	"encoding/json"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"surveyops/internal/telemetry"
)

// Feed pushes track rows and mission events to browsers over Server-Sent
// Events. It is both a sim.TrackWriter and a sim.MissionEventWriter.
type Feed struct {
	srv     *sse.Server
	publish func([]byte)
}

type feedEnvelope struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// NewFeed creates an SSE feed.
func NewFeed() *Feed {
	f := &Feed{srv: sse.NewServer()}
	f.publish = func(b []byte) {
		e := &sse.Message{}
		e.AppendData(b)
		f.srv.Publish(e)
	}
	return f
}

// ServeHTTP subscribes a client to the feed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.srv.ServeHTTP(w, r)
}

// Write publishes a track row.
func (f *Feed) Write(row telemetry.TrackRow) error {
	return f.send("track", row)
}

// WriteMissionEvent publishes a mission transition.
func (f *Feed) WriteMissionEvent(e telemetry.MissionEventRow) error {
	return f.send("mission", e)
}

func (f *Feed) send(kind string, v any) error {
	b, err := json.Marshal(feedEnvelope{Kind: kind, Data: v})
	if err != nil {
		return err
	}
	f.publish(b)
	return nil
}
