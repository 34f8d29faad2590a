package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return Default()
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Guard.Mode = "audit"
	cfg.Guard.MaxAudit = 0
	cfg.Repair.Strategy = "magic"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded, want errors")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(validationErr.Errors) != 3 {
		t.Errorf("got %d field errors, want all 3 collected: %v", len(validationErr.Errors), validationErr.Errors)
	}
}

func TestValidate_FieldPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Guard.Mode = "audit"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "guard.mode") {
		t.Errorf("error = %v, want guard.mode named", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }},
		{"negative shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -1 }},
		{"zero eval timeout", func(c *Config) { c.Engine.EvalTimeout = 0 }},
		{"zero max concurrent", func(c *Config) { c.Engine.MaxConcurrent = 0 }},
		{"unknown guard mode", func(c *Config) { c.Guard.Mode = "block" }},
		{"underscore log only", func(c *Config) { c.Guard.Mode = "log_only" }},
		{"unknown repair strategy", func(c *Config) { c.Repair.Strategy = "ml" }},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "postgres" }},
		{"sqlite without path", func(c *Config) {
			c.Audit.Backend = "sqlite"
			c.Audit.SQLite.Path = ""
		}},
		{"unknown sqlite driver", func(c *Config) { c.Audit.SQLite.Driver = "duckdb" }},
		{"negative retention days", func(c *Config) { c.Audit.Retention.Days = -1 }},
		{"unknown log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }},
		{"unknown log format", func(c *Config) { c.Telemetry.Logging.Format = "logfmt" }},
		{"metrics path without slash", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}

func TestValidate_AcceptsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Guard.Mode = "log-only"
	cfg.Audit.Backend = "sqlite"
	cfg.Audit.SQLite.Driver = "sqlite3"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
