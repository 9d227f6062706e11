package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError provides structured context for configuration failures,
// distinguishing parsing errors from validation errors.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig initializes the application configuration.
//
// It enforces UTC as the process-wide timezone (occurrence computation
// depends on it), loads a local .env file when present, resolves all
// environment variables into the Config struct, and validates it. Any
// failure is fatal to startup by contract; callers should exit.
func LoadConfig() (*Config, error) {
	// All scheduling math is UTC. Pinning time.Local prevents host timezone
	// configuration from leaking into time.Time formatting or comparisons.
	time.Local = time.UTC

	// Load .env if present. Real environment variables take precedence, so
	// this is a no-op in deployed environments.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, &ConfigError{
				Type:    ErrParsing,
				Message: "failed to load .env file",
				Err:     err,
			}
		}
		slog.Debug("no .env file found, using environment variables only")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment variables",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return &ConfigError{
				Type:    ErrValidation,
				Message: "invalid validation setup",
				Err:     err,
			}
		}

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &ConfigError{
				Type: ErrValidation,
				Message: fmt.Sprintf("field %s failed validation rule %s",
					first.Namespace(), first.Tag()),
				Err: err,
			}
		}

		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.Scheduler.Concurrency < 1 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "SCHEDULER_CONCURRENCY must be at least 1",
		}
	}
	if cfg.Scheduler.MaxAttempts < 1 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "SCHEDULER_MAX_ATTEMPTS must be at least 1",
		}
	}

	return nil
}
