package config

import (
	"fmt"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns the formatted validation failures.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the configuration, collecting all failures.
func Validate(cfg *Config) error {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("invalid level %q", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("invalid format %q", cfg.Logging.Format)})
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite":
		if cfg.Store.Path == "" {
			errs = append(errs, FieldError{"store.path", "required for sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"store.backend", fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Store.Backend)})
	}

	switch cfg.Audit.Backend {
	case "memory":
	case "sqlite":
		if cfg.Audit.Path == "" {
			errs = append(errs, FieldError{"audit.path", "required for sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"audit.backend", fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Audit.Backend)})
	}

	if cfg.Policy.Git != nil && cfg.Policy.Git.Repository == "" {
		errs = append(errs, FieldError{"policy.git.repository", "cannot be empty when git is configured"})
	}
	if cfg.Policy.Git != nil && cfg.Policy.Watch {
		errs = append(errs, FieldError{"policy.watch", "file watching cannot be combined with a git source"})
	}

	if cfg.Engine.ValidatorTimeout <= 0 {
		errs = append(errs, FieldError{"engine.validator_timeout", "must be positive"})
	}
	if cfg.Engine.MaxPolicies <= 0 {
		errs = append(errs, FieldError{"engine.max_policies", "must be positive"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
