// Package store persists drones and missions behind database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
)

var (
	// ErrNotFound is returned when a drone or mission does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSerial is returned when a drone serial number is already registered.
	ErrDuplicateSerial = errors.New("serial number already registered")
	// ErrDroneAssigned is returned when deleting a drone booked by an active mission.
	ErrDroneAssigned = errors.New("drone assigned to an active mission")
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the drone and mission repository.
type Store struct {
	db       *sql.DB
	driver   string
	now      func() time.Time
	pathOpts []flightpath.Option
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and start guards.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPathOptions sets the flight path resolution used to estimate mission
// durations.
func WithPathOptions(opts ...flightpath.Option) Option {
	return func(s *Store) { s.pathOpts = append(s.pathOpts, opts...) }
}

// Open connects to the database and creates the schema. driver is "sqlite"
// or "pgx".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		driver = "sqlite"
	case "pgx", "postgres", "postgresql":
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// one connection serializes writers and keeps :memory: databases alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.FromContext(ctx).Info("database ready", "driver", driver)
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS drones (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		serial_number TEXT NOT NULL UNIQUE,
		model TEXT NOT NULL,
		status TEXT NOT NULL,
		battery_level DOUBLE PRECISION NOT NULL,
		max_flight_time INTEGER NOT NULL,
		location TEXT,
		health_status TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		survey_area TEXT NOT NULL,
		altitude DOUBLE PRECISION NOT NULL,
		speed DOUBLE PRECISION NOT NULL,
		flight_pattern TEXT NOT NULL,
		overlap DOUBLE PRECISION NOT NULL,
		drone_id TEXT NOT NULL,
		schedule TEXT NOT NULL,
		scheduled_at BIGINT NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_missions_drone ON missions (drone_id, status)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
