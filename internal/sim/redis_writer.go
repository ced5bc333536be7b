package sim

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"surveyops/internal/telemetry"
)

const (
	redisPositionKey = "surveyops:position:"
	redisTrailKey    = "surveyops:trail:"
	redisEventsChan  = "surveyops:mission-events"
)

// redisClient is the subset of *redis.Client used by RedisWriter.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisWriter keeps the latest position and trail of each mission in Redis
// as msgpack blobs so other dashboard instances can pick up a live mission.
// Mission events are published on a channel.
type RedisWriter struct {
	rdb redisClient
	ttl time.Duration
}

// NewRedisWriter connects to addr. Keys expire ttl after the last write.
func NewRedisWriter(addr string, ttl time.Duration) *RedisWriter {
	return &RedisWriter{rdb: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

// Write stores the row as the mission's current position and appends it to
// the trail.
func (w *RedisWriter) Write(row telemetry.TrackRow) error {
	ctx := context.Background()
	b, err := msgpack.Marshal(row)
	if err != nil {
		return err
	}
	if err := w.rdb.Set(ctx, redisPositionKey+row.MissionID, b, w.ttl).Err(); err != nil {
		return err
	}
	trail := redisTrailKey + row.MissionID
	if err := w.rdb.RPush(ctx, trail, b).Err(); err != nil {
		return err
	}
	if w.ttl > 0 {
		return w.rdb.Expire(ctx, trail, w.ttl).Err()
	}
	return nil
}

// WriteBatch stores multiple track rows.
func (w *RedisWriter) WriteBatch(rows []telemetry.TrackRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteMissionEvent publishes the transition.
func (w *RedisWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}
	return w.rdb.Publish(context.Background(), redisEventsChan, b).Err()
}

// Close closes the Redis connection.
func (w *RedisWriter) Close() error {
	return w.rdb.Close()
}
