package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"edustack-hq/turnstile/pkg/tiers"
)

// FieldError represents a validation error for a specific
// configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "limits.global_per_minute").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides
// access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any rule fails. All errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateTiers(cfg)...)
	errs = append(errs, validatePricing(&cfg.Pricing)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must not be negative",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (expected debug, info, warn, or error)", cfg.Level),
		})
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Format),
		})
	}

	return errs
}

func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	positive := []struct {
		field string
		value int
	}{
		{"limits.global_per_minute", cfg.GlobalPerMinute},
		{"limits.global_per_hour", cfg.GlobalPerHour},
		{"limits.ip_per_minute", cfg.IPPerMinute},
		{"limits.ip_per_hour", cfg.IPPerHour},
		{"limits.window_capacity", cfg.WindowCapacity},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, FieldError{
				Field:   p.field,
				Message: "must be positive",
			})
		}
	}

	if cfg.GlobalPerHour < cfg.GlobalPerMinute {
		errs = append(errs, FieldError{
			Field:   "limits.global_per_hour",
			Message: "hourly ceiling must not be below the minute ceiling",
		})
	}
	if cfg.IPPerHour < cfg.IPPerMinute {
		errs = append(errs, FieldError{
			Field:   "limits.ip_per_hour",
			Message: "hourly ceiling must not be below the minute ceiling",
		})
	}

	if cfg.UserBlockDuration <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.user_block_duration",
			Message: "must be positive",
		})
	}
	if cfg.IPBlockDuration <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.ip_block_duration",
			Message: "must be positive",
		})
	}

	return errs
}

// validateTiers checks the tier override names and then delegates the
// monotonicity check to the tiers catalog constructor, which owns the
// ordering invariant.
func validateTiers(cfg *Config) []FieldError {
	var errs []FieldError

	known := make(map[string]bool, len(tiers.Ordering))
	for _, name := range tiers.Ordering {
		known[name] = true
	}
	for name := range cfg.Tiers {
		if !known[name] {
			errs = append(errs, FieldError{
				Field:   "tiers." + name,
				Message: fmt.Sprintf("unknown tier (expected one of %s)", strings.Join(tiers.Ordering, ", ")),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if _, err := tiers.NewCatalog(cfg.TierLimits()); err != nil {
		errs = append(errs, FieldError{
			Field:   "tiers",
			Message: err.Error(),
		})
	}

	return errs
}

func validatePricing(cfg *PricingConfig) []FieldError {
	var errs []FieldError

	if cfg.InputPerMillion < 0 {
		errs = append(errs, FieldError{
			Field:   "pricing.input_per_million",
			Message: "must not be negative",
		})
	}
	if cfg.OutputPerMillion < 0 {
		errs = append(errs, FieldError{
			Field:   "pricing.output_per_million",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if !cfg.AuditEnabled() {
		return nil
	}

	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.Buffer < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.buffer",
			Message: "must not be negative",
		})
	}

	if cfg.RetentionDays > 0 && cfg.RetentionSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}
