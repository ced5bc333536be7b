package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"surveyops/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes track rows and mission events to GreptimeDB via
// the ingester client. Tables are created on first write.
type GreptimeDBWriter struct {
	client     greptimeClient
	trackTable string
	eventTable string
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port") and
// writes into database.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithDatabase(database)
	if port > 0 {
		cfg = cfg.WithPort(port)
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:     client,
		trackTable: telemetry.TrackTableName,
		eventTable: telemetry.EventTableName,
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "grpc://")
	host, portStr, ok := strings.Cut(endpoint, ":")
	if !ok {
		return endpoint, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid greptime endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}

// Write inserts a single track row.
func (w *GreptimeDBWriter) Write(row telemetry.TrackRow) error {
	return w.WriteBatch([]telemetry.TrackRow{row})
}

// WriteBatch inserts multiple track rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.TrackRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.trackTable)
	if err != nil {
		return err
	}
	cols := []struct {
		name string
		add  func(string, types.ColumnType) error
		typ  types.ColumnType
	}{
		{"mission_id", tbl.AddTagColumn, types.STRING},
		{"drone_id", tbl.AddTagColumn, types.STRING},
		{"lng", tbl.AddFieldColumn, types.FLOAT64},
		{"lat", tbl.AddFieldColumn, types.FLOAT64},
		{"alt", tbl.AddFieldColumn, types.FLOAT64},
		{"step_index", tbl.AddFieldColumn, types.INT64},
		{"path_length", tbl.AddFieldColumn, types.INT64},
		{"completion_percent", tbl.AddFieldColumn, types.INT64},
		{"ts", tbl.AddTimestampColumn, types.TIMESTAMP_MILLISECOND},
	}
	for _, c := range cols {
		if err := c.add(c.name, c.typ); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.MissionID, r.DroneID, r.Lng, r.Lat, r.Alt,
			int64(r.StepIndex), int64(r.PathLength), int64(r.CompletionPercent), r.Timestamp); err != nil {
			return err
		}
	}
	_, err = w.client.Write(context.Background(), tbl)
	return err
}

// WriteMissionEvent inserts a mission transition row.
func (w *GreptimeDBWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("mission_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("drone_id", types.STRING); err != nil {
		return err
	}
	for _, name := range []string{"event", "from_status", "to_status", "error"} {
		if err := tbl.AddFieldColumn(name, types.STRING); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	if err := tbl.AddRow(e.MissionID, e.DroneID, e.Event, e.From, e.To, e.Error, e.Timestamp); err != nil {
		return err
	}
	_, err = w.client.Write(context.Background(), tbl)
	return err
}
