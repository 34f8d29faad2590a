package registry

import "fmt"

// NotFoundError indicates an administrative operation referenced an unknown
// policy or rule.
type NotFoundError struct {
	Kind   string // "policy" or "rule"
	Name   string
	Policy string // owning policy, set when Kind is "rule"
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	if e.Kind == "rule" {
		return fmt.Sprintf("rule %q not found in policy %q", e.Name, e.Policy)
	}
	return fmt.Sprintf("policy %q not found", e.Name)
}

// ConflictError indicates an attempt to add a rule whose name already exists
// within the policy.
type ConflictError struct {
	Policy string
	Rule   string
}

// Error returns the error message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("rule %q already exists in policy %q", e.Rule, e.Policy)
}
