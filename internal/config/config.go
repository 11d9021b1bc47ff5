// Package config defines service configuration and its loading hooks.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load(ctx) layers defaults, an optional YAML file and GRADEBOOK_* env vars.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Idempotency backends.
const (
	IdempotencyMemory = "memory"
	IdempotencyRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or postgres.
	Store string `koanf:"store"`
	// DatabaseURL is the postgres DSN used when Store is postgres.
	DatabaseURL string `koanf:"database_url"`
	// SeedFile points to a YAML document loaded into an empty store at start.
	SeedFile string `koanf:"seed_file"`
	// DemoSeed fills an empty store with generated demo data.
	DemoSeed bool `koanf:"demo_seed"`

	// IdempotencyBackend selects where Idempotency-Key values are tracked.
	IdempotencyBackend string `koanf:"idempotency_backend"`
	// RedisAddr is used when IdempotencyBackend is redis.
	RedisAddr string `koanf:"redis_addr"`
	// IdempotencyTTLSeconds bounds how long a key is remembered.
	IdempotencyTTLSeconds int `koanf:"idempotency_ttl_seconds"`
	// IdempotencySize bounds the in-memory key set.
	IdempotencySize int `koanf:"idempotency_size"`

	// QueueSize bounds the statistics event queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of statistics workers.
	WorkerCount int `koanf:"worker_count"`

	// GradeScale is the scale averages are normalized to (e.g. 20 or 100).
	GradeScale float64 `koanf:"grade_scale"`
	// PassRatio is the fraction of max_score counted as a pass.
	PassRatio float64 `koanf:"pass_ratio"`

	// RequestTimeoutMS caps each API request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		Store:                 StoreMemory,
		DemoSeed:              true,
		IdempotencyBackend:    IdempotencyMemory,
		IdempotencyTTLSeconds: 24 * 60 * 60,
		IdempotencySize:       100_000,
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU(),
		GradeScale:            20,
		PassRatio:             0.5,
		RequestTimeoutMS:      15_000,
		CORSOrigins:           "http://localhost:3000,http://localhost:5173",
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// IdempotencyTTL returns IdempotencyTTLSeconds as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// AllowedOrigins splits CORSOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && strings.TrimSpace(c.DatabaseURL) == "":
		return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
	case c.IdempotencyBackend != IdempotencyMemory && c.IdempotencyBackend != IdempotencyRedis:
		return fmt.Errorf("%w: unknown idempotency_backend %q", ErrInvalidConfig, c.IdempotencyBackend)
	case c.IdempotencyBackend == IdempotencyRedis && strings.TrimSpace(c.RedisAddr) == "":
		return fmt.Errorf("%w: redis_addr is required for the redis idempotency backend", ErrInvalidConfig)
	case c.GradeScale <= 0:
		return fmt.Errorf("%w: grade_scale must be positive", ErrInvalidConfig)
	case c.PassRatio < 0 || c.PassRatio > 1:
		return fmt.Errorf("%w: pass_ratio must be within [0, 1]", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
