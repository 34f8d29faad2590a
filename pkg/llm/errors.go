package llm

import (
	"fmt"
	"time"
)

// ConfigError indicates invalid client configuration.
type ConfigError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm client config: %s: %s", e.Field, e.Message)
}

// AuthError indicates the provider rejected the API key.
type AuthError struct {
	Message string
}

// Error returns the error message.
func (e *AuthError) Error() string {
	return fmt.Sprintf("llm authentication failed: %s", e.Message)
}

// RateLimitError indicates the provider throttled the request.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

// Error returns the error message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm rate limited (retry after %v): %s", e.RetryAfter, e.Message)
}

// TimeoutError indicates the request exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm request timed out after %v", e.Timeout)
}

// APIError indicates a non-retryable provider error response.
type APIError struct {
	StatusCode int
	Message    string
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("llm request failed with status %d: %s", e.StatusCode, e.Message)
}

// ParseError indicates the provider response could not be decoded.
type ParseError struct {
	RawResponse string
	Cause       error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse llm response: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
