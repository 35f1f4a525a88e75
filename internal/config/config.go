// Package config loads the engine configuration from YAML, validated against
// a CUE schema, with environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dronefleet/internal/telemetry"
)

// Fleet sizes and seeds the initial device set.
type Fleet struct {
	Size       int    `yaml:"size"`
	NamePrefix string `yaml:"name_prefix"`
	Seed       int64  `yaml:"seed"`
	ImagePath  string `yaml:"image_path"`
}

// Timing holds the periods of the background loops.
type Timing struct {
	MutationInterval time.Duration `yaml:"mutation_interval"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// Broadcast configures subscriber backpressure.
type Broadcast struct {
	QueueDepth   int    `yaml:"queue_depth"`
	SlowConsumer string `yaml:"slow_consumer"`
}

// Auth configures token issuing. An empty JWTSecret disables auth.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Greptime points the export sink at a GreptimeDB instance.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Sinks selects the snapshot writers attached at startup.
type Sinks struct {
	Stdout   string   `yaml:"stdout"`
	TUI      bool     `yaml:"tui"`
	LogFile  string   `yaml:"log_file"`
	Greptime Greptime `yaml:"greptime"`
}

// Config is the root configuration.
type Config struct {
	ClusterID string    `yaml:"cluster_id"`
	Listen    string    `yaml:"listen"`
	LogLevel  string    `yaml:"log_level"`
	LogFormat string    `yaml:"log_format"`
	Fleet     Fleet     `yaml:"fleet"`
	Timing    Timing    `yaml:"timing"`
	Broadcast Broadcast `yaml:"broadcast"`
	Auth      Auth      `yaml:"auth"`
	Sinks     Sinks     `yaml:"sinks"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ClusterID: "fleet-01",
		Listen:    ":4000",
		LogLevel:  "info",
		LogFormat: "text",
		Fleet: Fleet{
			Size:       3,
			NamePrefix: "Drone-",
		},
		Timing: Timing{
			MutationInterval: 3 * time.Second,
			PublishInterval:  3 * time.Second,
			PingInterval:     10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Broadcast: Broadcast{
			QueueDepth:   8,
			SlowConsumer: "drop_oldest",
		},
		Auth: Auth{
			Username: "admin",
			TokenTTL: time.Hour,
		},
		Sinks: Sinks{
			Stdout: "none",
			Greptime: Greptime{
				Database: "public",
				Table:    telemetry.TelemetryTableName,
			},
		},
	}
}

// Load reads configPath over the defaults, validating it against the CUE
// schema at schemaPath (or the embedded schema when schemaPath is empty).
// An empty configPath yields the defaults. Environment overrides are applied
// last.
func Load(configPath, schemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := ValidateWithCue(configPath, schemaPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", configPath, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CLUSTER_ID"); ok && v != "" {
		c.ClusterID = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("GREPTIMEDB_ENDPOINT"); ok && v != "" {
		c.Sinks.Greptime.Endpoint = v
	}
	if v, ok := lookup("GREPTIMEDB_TABLE"); ok && v != "" {
		c.Sinks.Greptime.Table = v
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TICK_INTERVAL", &c.Timing.MutationInterval},
		{"PUBLISH_INTERVAL", &c.Timing.PublishInterval},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks semantic constraints the schema cannot express about the
// merged configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.ClusterID == "" {
		errs = append(errs, errors.New("cluster_id must not be empty"))
	}
	if c.Fleet.Size < 1 {
		errs = append(errs, fmt.Errorf("fleet.size must be at least 1, got %d", c.Fleet.Size))
	}
	for name, d := range map[string]time.Duration{
		"timing.mutation_interval": c.Timing.MutationInterval,
		"timing.publish_interval":  c.Timing.PublishInterval,
		"timing.ping_interval":     c.Timing.PingInterval,
		"timing.write_timeout":     c.Timing.WriteTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Broadcast.QueueDepth < 1 {
		errs = append(errs, fmt.Errorf("broadcast.queue_depth must be at least 1, got %d", c.Broadcast.QueueDepth))
	}
	switch c.Broadcast.SlowConsumer {
	case "drop_oldest", "disconnect":
	default:
		errs = append(errs, fmt.Errorf("broadcast.slow_consumer: unknown policy %q", c.Broadcast.SlowConsumer))
	}
	if c.Auth.JWTSecret != "" && c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive when auth is enabled"))
	}
	return errors.Join(errs...)
}
