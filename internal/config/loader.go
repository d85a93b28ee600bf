package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads configuration from the environment.
//
// The sequence is:
//  1. Load .env files if present (they never override the process environment).
//  2. Process envconfig tags into Config.
//  3. Validate with go-playground/validator.
//  4. Parse the worker site list and check the rule set for consistency.
func Load(dotenvFiles ...string) (*Config, error) {
	// godotenv.Load fails when a named file is missing; that is not an error here.
	_ = godotenv.Load(dotenvFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if _, err := ParseSites(cfg.Worker.Sites); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "invalid WORKER_SITES",
			Err:     err,
		}
	}

	if err := cfg.Rules.RuleSet().Validate(); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "invalid rule thresholds",
			Err:     err,
		}
	}

	return &cfg, nil
}
