package repair

import (
	"fmt"
	"sort"
	"strings"

	"guardian-hq/guardian/pkg/policy/engine"
	"guardian-hq/guardian/pkg/policy/rules"
)

// heuristic applies mechanical fixes keyed on each violation's kind. All
// fixes accumulate on a single copy of the action, so multiple violations
// compound rather than producing divergent candidates. Returns nil when no
// violation maps to a known fix, signalling the caller to escalate.
func (s *Service) heuristic(action map[string]any, violations []engine.RuleResult) *Result {
	repaired := copyAction(action)

	var (
		addressed []string
		remaining []string
		notes     []string
	)

	for _, v := range violations {
		kind := classify(v)
		var note string
		switch kind {
		case rules.KindBudget:
			note = scaleNumerics(repaired, 0.8, "reduced %s by 20%%")
		case rules.KindThreshold:
			note = scaleNumerics(repaired, 0.9, "reduced %s by 10%% for safety margin")
		case rules.KindApproval:
			repaired["requires_human_review"] = true
			repaired["review_reason"] = v.Message
			note = "flagged action for human review"
		}
		if note == "" {
			remaining = append(remaining, v.Message)
			continue
		}
		addressed = append(addressed, v.Message)
		notes = append(notes, note)
	}

	if len(addressed) == 0 {
		return nil
	}

	confidence := 0.85
	if len(remaining) > 0 {
		confidence = 0.6
	}

	return &Result{
		Strategy:       StrategyHeuristic,
		OriginalAction: action,
		RepairedAction: repaired,
		Explanation:    strings.Join(notes, "; "),
		Confidence:     confidence,
		Addressed:      addressed,
		Remaining:      remaining,
	}
}

// classify maps a violation to a repair bucket. An explicit rule kind wins;
// otherwise the message keywords decide, and anything unrecognized stays
// generic so the heuristic does not guess.
func classify(v engine.RuleResult) rules.Kind {
	if v.Kind != "" && v.Kind != rules.KindGeneric {
		return v.Kind
	}
	return rules.InferKind(v.Message)
}

// scaleNumerics multiplies every positive numeric field of the action, one
// nested map level deep, by factor. Returns a human-readable note naming
// the touched fields, or "" when nothing was numeric.
func scaleNumerics(action map[string]any, factor float64, format string) string {
	var touched []string
	for key, val := range action {
		if n, ok := positiveNumber(val); ok {
			action[key] = n * factor
			touched = append(touched, key)
			continue
		}
		nested, ok := val.(map[string]any)
		if !ok {
			continue
		}
		for nk, nv := range nested {
			if n, ok := positiveNumber(nv); ok {
				nested[nk] = n * factor
				touched = append(touched, key+"."+nk)
			}
		}
	}
	if len(touched) == 0 {
		return ""
	}
	sort.Strings(touched)
	return fmt.Sprintf(format, strings.Join(touched, ", "))
}

// positiveNumber reports val as a float64 when it is a positive number.
// Booleans and non-positive values are left alone.
func positiveNumber(val any) (float64, bool) {
	var n float64
	switch v := val.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	default:
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}
