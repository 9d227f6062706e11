// Package config defines the global configuration for the reminder service.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating code
// from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"diet-reminders"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Extraction ExtractionConfig
	Scheduler  SchedulerConfig
	Push       PushConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"20s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// ExtractionConfig holds diet-text extraction behavior settings.
type ExtractionConfig struct {
	// DefaultDays is the fallback day policy applied when the submitted text
	// names no weekdays at all. Accepts "workweek", "all", or a comma list of
	// day names ("mon,wed,fri").
	DefaultDays string `envconfig:"EXTRACTION_DEFAULT_DAYS" default:"workweek"`
}

// SchedulerConfig holds dispatcher and maintenance tuning.
type SchedulerConfig struct {
	// PollInterval is the cadence of the due-instance scan.
	PollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"1m"`

	// MinLead is the minimum distance into the future for any newly computed
	// occurrence. Occurrences closer than this roll to the next selected day.
	MinLead time.Duration `envconfig:"SCHEDULE_MIN_LEAD" default:"5s"`

	BatchSize   int `envconfig:"SCHEDULER_BATCH_SIZE" default:"100"`
	Concurrency int `envconfig:"SCHEDULER_CONCURRENCY" default:"8"`

	// MaxAttempts is the delivery attempt budget per instance.
	MaxAttempts int `envconfig:"SCHEDULER_MAX_ATTEMPTS" default:"3"`

	// Retention bounds how long terminal instances and old extraction
	// archives are kept before the daily sweep removes them.
	Retention time.Duration `envconfig:"SCHEDULER_RETENTION" default:"720h"`

	// RetentionSchedule is the cron expression for the retention sweep.
	RetentionSchedule string `envconfig:"SCHEDULER_RETENTION_SCHEDULE" default:"0 4 * * *"`
}

// PushConfig holds push gateway transport settings.
type PushConfig struct {
	GatewayURL string       `envconfig:"PUSH_GATEWAY_URL" validate:"required,url"`
	AuthToken  SecretString `envconfig:"PUSH_GATEWAY_TOKEN"`

	SendTimeout time.Duration `envconfig:"PUSH_SEND_TIMEOUT" default:"15s"`
	MaxRetries  int           `envconfig:"PUSH_MAX_RETRIES" default:"2"`
	MinWait     time.Duration `envconfig:"PUSH_RETRY_MIN_WAIT" default:"250ms"`
	MaxWait     time.Duration `envconfig:"PUSH_RETRY_MAX_WAIT" default:"5s"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
