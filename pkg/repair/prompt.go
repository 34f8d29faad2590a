package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"guardian-hq/guardian/pkg/policy/engine"
)

const systemPrompt = `You repair actions that were rejected by policy rules.
Given the rejected action, the violated rules, and optional context, produce
a minimally modified action that satisfies every violated rule while
preserving the action's intent.

Respond with a single JSON object and nothing else:
{"repaired_action": {...}, "explanation": "...", "confidence": 0.0}

confidence is your estimate, between 0 and 1, that the repaired action
passes re-evaluation.`

// buildPrompt renders the user message for a repair request.
func buildPrompt(action map[string]any, violations []engine.RuleResult, domainCtx map[string]any) (string, error) {
	actionJSON, err := json.MarshalIndent(action, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding action: %w", err)
	}

	var b strings.Builder
	b.WriteString("Rejected action:\n")
	b.Write(actionJSON)
	b.WriteString("\n\nViolated rules:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s/%s", v.PolicyName, v.RuleName)
		if v.Kind != "" {
			fmt.Fprintf(&b, " (%s)", v.Kind)
		}
		fmt.Fprintf(&b, ": %s\n", v.Message)
	}

	if len(domainCtx) > 0 {
		ctxJSON, err := json.MarshalIndent(domainCtx, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding context: %w", err)
		}
		b.WriteString("\nAdditional context:\n")
		b.Write(ctxJSON)
		b.WriteString("\n")
	}

	return b.String(), nil
}
