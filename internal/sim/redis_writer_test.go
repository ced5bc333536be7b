package sim

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"surveyops/internal/telemetry"
)

type fakeRedis struct {
	values    map[string][]byte
	lists     map[string][][]byte
	ttls      map[string]time.Duration
	published [][]byte
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, lists: map[string][][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.values[key] = value.([]byte)
	f.ttls[key] = exp
	return redis.NewStatusCmd(ctx)
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.([]byte))
	}
	return redis.NewIntCmd(ctx)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, exp time.Duration) *redis.BoolCmd {
	f.ttls[key] = exp
	return redis.NewBoolCmd(ctx)
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.published = append(f.published, message.([]byte))
	return redis.NewIntCmd(ctx)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisWriterStoresPositionAndTrail(t *testing.T) {
	f := newFakeRedis()
	w := &RedisWriter{rdb: f, ttl: time.Hour}
	ts := time.Unix(100, 0).UTC()
	rows := []telemetry.TrackRow{
		{MissionID: "m1", DroneID: "d1", Lng: 1, Lat: 2, StepIndex: 0, Timestamp: ts},
		{MissionID: "m1", DroneID: "d1", Lng: 3, Lat: 4, StepIndex: 1, Timestamp: ts.Add(time.Second)},
	}
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	var latest telemetry.TrackRow
	if err := msgpack.Unmarshal(f.values[redisPositionKey+"m1"], &latest); err != nil {
		t.Fatalf("decode position: %v", err)
	}
	if latest.StepIndex != 1 || latest.Lng != 3 || !latest.Timestamp.Equal(rows[1].Timestamp) {
		t.Fatalf("latest = %+v", latest)
	}
	if n := len(f.lists[redisTrailKey+"m1"]); n != 2 {
		t.Fatalf("trail length = %d, want 2", n)
	}
	if f.ttls[redisTrailKey+"m1"] != time.Hour {
		t.Fatalf("trail ttl not set")
	}
}

func TestRedisWriterPublishesEvents(t *testing.T) {
	f := newFakeRedis()
	w := &RedisWriter{rdb: f}
	if err := w.WriteMissionEvent(telemetry.MissionEventRow{MissionID: "m1", Event: "start", From: "scheduled", To: "in-progress"}); err != nil {
		t.Fatalf("WriteMissionEvent: %v", err)
	}
	if len(f.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(f.published))
	}
	var e telemetry.MissionEventRow
	if err := msgpack.Unmarshal(f.published[0], &e); err != nil || e.To != "in-progress" {
		t.Fatalf("decoded event = %+v, %v", e, err)
	}
}
