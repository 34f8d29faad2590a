package rules

import "fmt"

// ConfigError indicates a malformed policy or rule definition at load time.
// Load-time definition errors are fatal at startup and never recoverable
// per evaluation.
type ConfigError struct {
	Policy  string
	Rule    string
	Message string
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	switch {
	case e.Policy != "" && e.Rule != "":
		return fmt.Sprintf("policy %s rule %s: %s", e.Policy, e.Rule, e.Message)
	case e.Policy != "":
		return fmt.Sprintf("policy %s: %s", e.Policy, e.Message)
	default:
		return fmt.Sprintf("policy definition: %s", e.Message)
	}
}
