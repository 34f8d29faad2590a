// Package mapper flattens upstream decision state into the Guardian
// evaluation namespace.
//
// The namespace is fixed: domain.*, action.*, user.*, risk.*, approval.*,
// prediction.*, data.* and session.*. The evaluation engine depends only on
// this shape and never inspects the upstream state object directly.
package mapper

import (
	"fmt"

	"guardian-hq/guardian/pkg/policy/engine"
)

// DecisionState is the canonical upstream state consumed by the default
// mapper. Orchestrators that hold richer state implement engine.Mapper
// themselves.
type DecisionState struct {
	Domain     map[string]any `json:"domain" yaml:"domain"`
	Action     map[string]any `json:"action" yaml:"action"`
	User       map[string]any `json:"user" yaml:"user"`
	Risk       map[string]any `json:"risk" yaml:"risk"`
	Approval   map[string]any `json:"approval" yaml:"approval"`
	Prediction map[string]any `json:"prediction" yaml:"prediction"`
	Data       map[string]any `json:"data" yaml:"data"`
	Session    map[string]any `json:"session" yaml:"session"`
}

// MappingError indicates upstream state could not be flattened into the
// evaluation namespace. The engine absorbs it into a fail-closed or
// fail-open Evaluation; it never reaches callers as an error.
type MappingError struct {
	Reason string
}

// Error returns the error message.
func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map state to evaluation context: %s", e.Reason)
}

// namespaceSections are the accepted top-level keys of the namespace.
var namespaceSections = []string{
	"domain", "action", "user", "risk", "approval", "prediction", "data", "session",
}

// Default is the standard state-to-context mapper.
type Default struct{}

// New creates the default mapper.
func New() *Default {
	return &Default{}
}

// Map flattens the supported state shapes into an evaluation context:
//
//   - *DecisionState / DecisionState: each section becomes a namespace key.
//   - engine.Context or map[string]any: validated as an already-flat
//     context; unknown top-level sections are rejected.
//
// Anything else is a *MappingError.
func (m *Default) Map(state any) (engine.Context, error) {
	switch s := state.(type) {
	case nil:
		return nil, &MappingError{Reason: "state is nil"}

	case *DecisionState:
		if s == nil {
			return nil, &MappingError{Reason: "state is nil"}
		}
		return fromDecisionState(s), nil

	case DecisionState:
		return fromDecisionState(&s), nil

	case engine.Context:
		return validateSections(map[string]any(s))

	case map[string]any:
		return validateSections(s)

	default:
		return nil, &MappingError{Reason: fmt.Sprintf("unsupported state type %T", state)}
	}
}

// fromDecisionState builds the namespace from the canonical struct.
// Empty sections are still materialized so constraint misses report a
// missing path rather than a missing section.
func fromDecisionState(s *DecisionState) engine.Context {
	return engine.Context{
		"domain":     orEmpty(s.Domain),
		"action":     orEmpty(s.Action),
		"user":       orEmpty(s.User),
		"risk":       orEmpty(s.Risk),
		"approval":   orEmpty(s.Approval),
		"prediction": orEmpty(s.Prediction),
		"data":       orEmpty(s.Data),
		"session":    orEmpty(s.Session),
	}
}

// validateSections accepts an already-flat context after checking its
// top-level keys belong to the namespace and hold map sections.
func validateSections(m map[string]any) (engine.Context, error) {
	out := make(engine.Context, len(m))
	for key, value := range m {
		if !isSection(key) {
			return nil, &MappingError{Reason: fmt.Sprintf("unknown namespace section %q", key)}
		}
		section, ok := value.(map[string]any)
		if !ok {
			return nil, &MappingError{Reason: fmt.Sprintf("section %q is not a map", key)}
		}
		out[key] = section
	}
	return out, nil
}

func isSection(key string) bool {
	for _, s := range namespaceSections {
		if s == key {
			return true
		}
	}
	return false
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
