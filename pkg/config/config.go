// Package config defines the Guardian configuration model and its YAML
// loading, defaulting, and validation.
package config

import "time"

// Config is the root configuration for the Guardian service.
type Config struct {
	// Server configures the admin HTTP server.
	Server ServerConfig `yaml:"server"`

	// Engine configures policy evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Guard configures tool guarding.
	Guard GuardConfig `yaml:"guard"`

	// Repair configures the action repair service.
	Repair RepairConfig `yaml:"repair"`

	// LLM configures the language model client used for repair.
	LLM LLMConfig `yaml:"llm"`

	// Policy configures rule loading.
	Policy PolicyConfig `yaml:"policy"`

	// Audit configures durable audit persistence.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout, WriteTimeout, and IdleTimeout configure the HTTP
	// server timeouts.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EngineConfig contains policy evaluation settings.
type EngineConfig struct {
	// FailClosed denies actions when evaluation itself fails.
	FailClosed *bool `yaml:"fail_closed"`

	// EvalTimeout bounds a single evaluation.
	EvalTimeout time.Duration `yaml:"eval_timeout"`

	// MaxConcurrent caps concurrent evaluations.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// GuardConfig contains tool guard settings.
type GuardConfig struct {
	// Mode is "enforce" (block violations) or "log-only" (record and
	// proceed).
	Mode string `yaml:"mode"`

	// MaxAudit bounds the in-memory audit ring.
	MaxAudit int `yaml:"max_audit"`

	// Policies restricts evaluation to the named policies. Empty means
	// all registered policies.
	Policies []string `yaml:"policies"`
}

// RepairConfig contains repair service settings.
type RepairConfig struct {
	// Strategy is "heuristic", "llm", or "hybrid".
	Strategy string `yaml:"strategy"`

	// LLMTimeout bounds a single language model repair call.
	LLMTimeout time.Duration `yaml:"llm_timeout"`
}

// LLMConfig contains language model client settings.
type LLMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PolicyConfig contains rule loading settings.
type PolicyConfig struct {
	// Path is a YAML policy file loaded at startup. Empty uses the
	// built-in policy set.
	Path string `yaml:"path"`

	// Watch reloads the policy file on change.
	Watch bool `yaml:"watch"`
}

// AuditConfig contains durable audit persistence settings.
type AuditConfig struct {
	// Enabled enables persistence beyond the in-memory ring.
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// AsyncBuffer is the recorder channel size.
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention configures scheduled pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains sqlite backend settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver"`
}

// RetentionConfig contains audit retention settings.
type RetentionConfig struct {
	// Days is the retention window; 0 keeps entries forever.
	Days int `yaml:"days"`

	// Schedule is a cron expression; empty disables scheduled pruning.
	Schedule string `yaml:"schedule"`

	// MaxRecords caps total stored entries; 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file:line in log output.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	Path string `yaml:"path"`
}
