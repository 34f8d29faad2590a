package engine

import (
	"fmt"
	"time"
)

// Config contains configuration for the evaluation engine.
type Config struct {
	// FailClosed controls the decision when context mapping or evaluation
	// itself errors: true denies (the default), false allows with the
	// error recorded. Errors are always recorded either way.
	FailClosed bool

	// EvalTimeout bounds a single evaluation, including the wait for a
	// worker slot. Default: 100ms.
	EvalTimeout time.Duration

	// MaxConcurrent caps the number of evaluations running at once on the
	// worker pool. Default: 64.
	MaxConcurrent int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		FailClosed:    true,
		EvalTimeout:   100 * time.Millisecond,
		MaxConcurrent: 64,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.EvalTimeout <= 0 {
		return fmt.Errorf("invalid engine configuration: eval timeout must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid engine configuration: max concurrent must be positive")
	}
	return nil
}
