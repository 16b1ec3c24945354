// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/okian/gradestats/internal/domain/scoring"
	"github.com/okian/gradestats/internal/domain/stats"
)

// Database drivers accepted in db_driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins is a comma separated list of allowed origins. Empty disables CORS.
	CORSOrigins string `koanf:"cors_origins"`

	// DBDriver is one of memory, sqlite, pgx, postgres.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`
	// SeedFile optionally points at a YAML/JSON fixture inserted at startup.
	SeedFile string `koanf:"seed_file"`

	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`

	PassThreshold  float64 `koanf:"pass_threshold"`
	ExamWeight     float64 `koanf:"exam_weight"`
	QuizWeight     float64 `koanf:"quiz_weight"`
	HomeworkWeight float64 `koanf:"homework_weight"`
	// StrictEntries makes queries fail on malformed stored entries instead of skipping them.
	StrictEntries bool `koanf:"strict_entries"`

	// AMQPURL enables the RabbitMQ consumer when set.
	AMQPURL   string `koanf:"amqp_url"`
	AMQPQueue string `koanf:"amqp_queue"`

	// WatchConfig reloads weights, threshold, strictness and log level when the config file changes.
	WatchConfig bool `koanf:"watch_config"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		DBDriver:       DriverMemory,
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU() * 2,
		DedupeSize:     50_000,
		PassThreshold:  stats.DefaultThreshold,
		ExamWeight:     scoring.DefaultExamWeight,
		QuizWeight:     scoring.DefaultQuizWeight,
		HomeworkWeight: scoring.DefaultHomeworkWeight,
		AMQPQueue:      "grades",
	}
}

// Policy builds the weighting policy from the configured weights.
func (c *Config) Policy() scoring.Policy {
	return scoring.NewPolicy(scoring.WithWeights(c.ExamWeight, c.QuizWeight, c.HomeworkWeight))
}

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case math.IsNaN(c.PassThreshold) || math.IsInf(c.PassThreshold, 0):
		return fmt.Errorf("%w: pass_threshold must be finite", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverMemory, DriverSQLite, DriverPgx, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
