package guard

import (
	"fmt"
	"strings"

	"guardian-hq/guardian/pkg/policy/engine"
)

// PolicyViolationError is raised by a guarded operation in enforce mode
// when policy evaluation denies the call. It carries the full Evaluation.
//
// This is the one error type that deliberately propagates to the guarded
// call's caller: it represents an intentional block, not a bug.
type PolicyViolationError struct {
	Tool       string
	Evaluation *engine.Evaluation
}

// Error returns the tool name and the concatenated violation messages.
func (e *PolicyViolationError) Error() string {
	msgs := e.Evaluation.ViolationMessages()
	if len(msgs) == 0 {
		return fmt.Sprintf("operation %q blocked by policy", e.Tool)
	}
	return fmt.Sprintf("operation %q blocked by policy: %s", e.Tool, strings.Join(msgs, "; "))
}
