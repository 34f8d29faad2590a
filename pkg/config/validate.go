package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "guard.mode").
	Field string

	// Message is a human-readable error message.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and returned together.
type ValidationError struct {
	Errors []FieldError
}

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

// Validate validates the entire configuration, returning a ValidationError
// when any rule fails.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateGuard(&cfg.Guard)...)
	errs = append(errs, validateRepair(&cfg.Repair)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

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
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.EvalTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.eval_timeout",
			Message: "must be positive",
		})
	}
	if cfg.MaxConcurrent <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_concurrent",
			Message: "must be positive",
		})
	}
	return errs
}

func validateGuard(cfg *GuardConfig) []FieldError {
	var errs []FieldError
	switch cfg.Mode {
	case "enforce", "log-only":
	default:
		errs = append(errs, FieldError{
			Field:   "guard.mode",
			Message: fmt.Sprintf("must be %q or %q, got %q", "enforce", "log-only", cfg.Mode),
		})
	}
	if cfg.MaxAudit <= 0 {
		errs = append(errs, FieldError{
			Field:   "guard.max_audit",
			Message: "must be positive",
		})
	}
	return errs
}

func validateRepair(cfg *RepairConfig) []FieldError {
	var errs []FieldError
	switch cfg.Strategy {
	case "heuristic", "llm", "hybrid":
	default:
		errs = append(errs, FieldError{
			Field:   "repair.strategy",
			Message: fmt.Sprintf("must be heuristic, llm, or hybrid, got %q", cfg.Strategy),
		})
	}
	if cfg.LLMTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "repair.llm_timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("must be memory or sqlite, got %q", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}
	switch cfg.SQLite.Driver {
	case "", "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.driver",
			Message: fmt.Sprintf("must be sqlite or sqlite3, got %q", cfg.SQLite.Driver),
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "must not be negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_records",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be debug, info, warn, or error, got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}
	return errs
}
