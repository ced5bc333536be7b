// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"surveyops/internal/flightpath"
	"surveyops/internal/logging"
)

// Simulation holds the stepper and path resolution settings.
type Simulation struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	Resolution      int           `yaml:"resolution"`
	PerimeterPasses int           `yaml:"perimeter_passes"`
	PerimeterShrink float64       `yaml:"perimeter_shrink"`
	CrosshatchLines int           `yaml:"crosshatch_lines"`
}

// Monitor holds the mission list refresh settings.
type Monitor struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Store selects the CRUD backend.
type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Output configures where simulated rows go.
type Output struct {
	Writers          []string      `yaml:"writers"`
	TrackFile        string        `yaml:"track_file"`
	EventFile        string        `yaml:"event_file"`
	GreptimeEndpoint string        `yaml:"greptime_endpoint"`
	GreptimeDatabase string        `yaml:"greptime_database"`
	RedisAddr        string        `yaml:"redis_addr"`
	RedisTTL         time.Duration `yaml:"redis_ttl"`
}

// Log mirrors logging.Options.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Server configures the HTTP dashboard.
type Server struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Monitor    Monitor    `yaml:"monitor"`
	Store      Store      `yaml:"store"`
	Output     Output     `yaml:"output"`
	Log        Log        `yaml:"log"`
	Server     Server     `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := flightpath.DefaultOptions()
	return &Config{
		Simulation: Simulation{
			TickInterval:    time.Second,
			Resolution:      opts.Resolution,
			PerimeterPasses: opts.PerimeterPasses,
			PerimeterShrink: opts.PerimeterShrink,
			CrosshatchLines: opts.CrosshatchLines,
		},
		Monitor: Monitor{PollInterval: 30 * time.Second},
		Store:   Store{Driver: "sqlite", DSN: "surveyops.db"},
		Output: Output{
			Writers:          []string{"stdout"},
			TrackFile:        "tracks.jsonl",
			EventFile:        "events.jsonl",
			GreptimeDatabase: "public",
			RedisTTL:         10 * time.Minute,
		},
		Log:    Log{Level: "info", Format: "text"},
		Server: Server{Addr: ":8080"},
	}
}

// Load validates the YAML file at path against the CUE schema, decodes it
// over the defaults and applies environment overrides. An empty schemaPath
// uses the embedded schema.
func Load(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	schema := embeddedSchema
	if schemaPath != "" {
		if schema, err = os.ReadFile(schemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	if err := Validate(path, data, schema); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides endpoints, the database DSN and the tick interval from
// the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Output.GreptimeEndpoint = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Output.RedisAddr = v
	}
	if v := os.Getenv("SURVEYOPS_DB_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid TICK_INTERVAL %q", v)
		}
		c.Simulation.TickInterval = d
	}
	return nil
}

// PathOptions converts the simulation section to generator options.
func (c *Config) PathOptions() []flightpath.Option {
	return []flightpath.Option{
		flightpath.WithResolution(c.Simulation.Resolution),
		flightpath.WithPerimeterPasses(c.Simulation.PerimeterPasses, c.Simulation.PerimeterShrink),
		flightpath.WithCrosshatchLines(c.Simulation.CrosshatchLines),
	}
}

// LogOptions converts the log section for logging.NewWithOptions.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File}
}
