package engine

import (
	"time"

	"guardian-hq/guardian/pkg/policy/rules"
)

// RuleResult is the outcome of evaluating a single rule against a context.
// Results are ephemeral: produced per rule per evaluation, never persisted
// beyond the Evaluation that carries them.
type RuleResult struct {
	// RuleName identifies the rule within its policy.
	RuleName string `json:"rule"`

	// PolicyName is the owning policy.
	PolicyName string `json:"policy"`

	// Passed is true when the rule's condition did not match (vacuous
	// pass) or its constraints were all satisfied.
	Passed bool `json:"passed"`

	// Kind is the rule's machine-readable classification, carried so the
	// repair service can switch on it instead of re-parsing Message.
	Kind rules.Kind `json:"kind"`

	// Message is the rule's violation text.
	Message string `json:"message"`
}

// Evaluation is the aggregate result of matching a context against the
// policy set. It is a return value only; the engine never stores it.
type Evaluation struct {
	// Allow is true when no rule was violated.
	Allow bool `json:"allow"`

	// RulesChecked counts every rule evaluated, including vacuous passes.
	RulesChecked int `json:"rules_checked"`

	// RulesPassed and RulesFailed partition RulesChecked.
	RulesPassed int `json:"rules_passed"`
	RulesFailed int `json:"rules_failed"`

	// Violations holds the failed RuleResults in evaluation order.
	Violations []RuleResult `json:"violations"`

	// AuditEntries holds one map per violation plus a summary entry,
	// ready for an external audit trail.
	AuditEntries []map[string]any `json:"audit_entries"`

	// Err is set when context mapping or evaluation itself failed; the
	// Allow decision then reflects the engine's fail mode.
	Err string `json:"error,omitempty"`
}

// ViolationMessages returns the messages of all violations in order.
func (e *Evaluation) ViolationMessages() []string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return msgs
}

// newAuditEntry builds the per-violation audit map.
func newAuditEntry(v RuleResult, now time.Time) map[string]any {
	return map[string]any{
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"rule":      v.RuleName,
		"policy":    v.PolicyName,
		"message":   v.Message,
	}
}
