// Package rules defines the policy and rule model for the Guardian
// evaluation engine.
//
// A Rule is one condition -> constraint pair with a human-readable violation
// message. The condition is a set of dotted-path equality checks that gate
// whether the rule applies at all; the constraint is the requirement
// enforced when the condition matches. A Policy is a named, versioned,
// ordered collection of rules.
//
// Rule definitions arrive in a dynamic shape (built-in Go literals or YAML
// files) and are compiled once into the typed model; all constraint
// polymorphism is resolved at load time, never re-inspected per evaluation.
package rules

import (
	"strings"
)

// Kind is the machine-readable classification of what a rule protects.
// The repair service switches on this tag instead of re-parsing violation
// message text.
type Kind string

const (
	// KindGeneric is the default for rules with no recognizable class.
	KindGeneric Kind = "generic"

	// KindBudget marks rules enforcing spend or cost ceilings.
	KindBudget Kind = "budget"

	// KindThreshold marks rules enforcing numeric safety thresholds.
	KindThreshold Kind = "threshold"

	// KindApproval marks rules requiring human approval or authorization.
	KindApproval Kind = "approval"
)

// Rule is one condition -> constraint pair. Identity (Name + PolicyName) is
// immutable; constraint and message may be edited at runtime through the
// registry's admin operations.
type Rule struct {
	// Name uniquely identifies the rule within its policy.
	Name string

	// PolicyName is the owning policy's name.
	PolicyName string

	// Kind classifies the rule for downstream repair.
	Kind Kind

	// Condition gates rule applicability: every dotted path must resolve
	// to a value equal to the expected one, otherwise the rule passes
	// vacuously. An empty condition always applies.
	Condition map[string]any

	// Constraint maps dotted paths to the compiled constraints enforced
	// when the condition matches.
	Constraint map[string]Constraint

	// Message is the human-readable violation text.
	Message string
}

// Policy is a named, versioned group of rules evaluated in registration
// order.
type Policy struct {
	Name        string
	Version     string
	Description string
	Rules       []*Rule
}

// Rule returns the named rule, or nil if the policy has no such rule.
func (p *Policy) Rule(name string) *Rule {
	for _, r := range p.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// RuleDef is the raw, dynamic shape of a rule definition before compilation.
type RuleDef struct {
	Name       string         `yaml:"name" json:"name"`
	Kind       string         `yaml:"kind" json:"kind"`
	Condition  map[string]any `yaml:"condition" json:"condition"`
	Constraint map[string]any `yaml:"constraint" json:"constraint"`
	Message    string         `yaml:"message" json:"message"`
}

// PolicyDef is the raw shape of a policy definition.
type PolicyDef struct {
	Name        string    `yaml:"name" json:"name"`
	Version     string    `yaml:"version" json:"version"`
	Description string    `yaml:"description" json:"description"`
	Rules       []RuleDef `yaml:"rules" json:"rules"`
}

// Compile resolves a policy definition into the typed model. All constraint
// shapes are parsed here; a malformed definition returns a *ConfigError.
func (d *PolicyDef) Compile() (*Policy, error) {
	if d.Name == "" {
		return nil, &ConfigError{Message: "policy name cannot be empty"}
	}

	p := &Policy{
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		Rules:       make([]*Rule, 0, len(d.Rules)),
	}

	seen := make(map[string]bool, len(d.Rules))
	for _, rd := range d.Rules {
		r, err := rd.compile(d.Name)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, &ConfigError{Policy: d.Name, Rule: r.Name, Message: "duplicate rule name"}
		}
		seen[r.Name] = true
		p.Rules = append(p.Rules, r)
	}

	return p, nil
}

// compile resolves a single rule definition.
func (d *RuleDef) compile(policyName string) (*Rule, error) {
	if d.Name == "" {
		return nil, &ConfigError{Policy: policyName, Message: "rule name cannot be empty"}
	}
	if len(d.Constraint) == 0 {
		return nil, &ConfigError{Policy: policyName, Rule: d.Name, Message: "rule has no constraints"}
	}
	if d.Message == "" {
		return nil, &ConfigError{Policy: policyName, Rule: d.Name, Message: "rule has no violation message"}
	}

	constraints := make(map[string]Constraint, len(d.Constraint))
	for path, raw := range d.Constraint {
		c, err := ParseConstraint(raw)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Policy = policyName
				ce.Rule = d.Name
			}
			return nil, err
		}
		constraints[path] = c
	}

	kind, err := parseKind(d.Kind)
	if err != nil {
		return nil, &ConfigError{Policy: policyName, Rule: d.Name, Message: err.Error()}
	}
	if kind == KindGeneric && d.Kind == "" {
		// Older definitions carry no explicit kind; classify from the
		// violation message so repair still gets a usable tag.
		kind = InferKind(d.Message)
	}

	return &Rule{
		Name:       d.Name,
		PolicyName: policyName,
		Kind:       kind,
		Condition:  d.Condition,
		Constraint: constraints,
		Message:    d.Message,
	}, nil
}

// parseKind validates an explicit kind string.
func parseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case "", KindGeneric:
		return KindGeneric, nil
	case KindBudget:
		return KindBudget, nil
	case KindThreshold:
		return KindThreshold, nil
	case KindApproval:
		return KindApproval, nil
	default:
		return KindGeneric, &ConfigError{Message: "unknown rule kind " + s}
	}
}

// InferKind classifies a violation message by keyword. This is the legacy
// text-matching path kept for definitions without an explicit kind tag.
func InferKind(message string) Kind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "budget") || strings.Contains(m, "cost"):
		return KindBudget
	case strings.Contains(m, "threshold") || strings.Contains(m, "limit"):
		return KindThreshold
	case strings.Contains(m, "approval") || strings.Contains(m, "authorization"):
		return KindApproval
	default:
		return KindGeneric
	}
}

// CompileAll compiles a set of policy definitions, rejecting duplicate
// policy names.
func CompileAll(defs []PolicyDef) ([]*Policy, error) {
	policies := make([]*Policy, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		p, err := d.Compile()
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, &ConfigError{Policy: p.Name, Message: "duplicate policy name"}
		}
		seen[p.Name] = true
		policies = append(policies, p)
	}
	return policies, nil
}
