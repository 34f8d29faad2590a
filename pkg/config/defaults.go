package config

import "time"

// ApplyDefaults fills zero-value fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// Engine defaults
	if cfg.Engine.FailClosed == nil {
		failClosed := true
		cfg.Engine.FailClosed = &failClosed
	}
	if cfg.Engine.EvalTimeout == 0 {
		cfg.Engine.EvalTimeout = 100 * time.Millisecond
	}
	if cfg.Engine.MaxConcurrent == 0 {
		cfg.Engine.MaxConcurrent = 64
	}

	// Guard defaults
	if cfg.Guard.Mode == "" {
		cfg.Guard.Mode = "enforce"
	}
	if cfg.Guard.MaxAudit == 0 {
		cfg.Guard.MaxAudit = 1000
	}

	// Repair defaults
	if cfg.Repair.Strategy == "" {
		cfg.Repair.Strategy = "hybrid"
	}
	if cfg.Repair.LLMTimeout == 0 {
		cfg.Repair.LLMTimeout = 20 * time.Second
	}

	// LLM defaults
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "memory"
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = 1000
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = 5 * time.Second
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = "data/audit.db"
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = "sqlite"
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = 90
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = "0 3 * * *"
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Telemetry.Metrics.Enabled = true
	return cfg
}
