// Package registry provides thread-safe storage for loaded policies.
//
// The registry holds an immutable snapshot behind an atomic pointer.
// Administrative mutations (add/update/delete a rule, full reload) build a
// complete new snapshot and swap the pointer, so concurrent evaluations
// never observe a partially-updated rule set.
package registry

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"guardian-hq/guardian/pkg/policy/rules"
)

// Loader produces a fresh policy set for full reloads.
type Loader func() ([]*rules.Policy, error)

// snapshot is one immutable view of the policy set. Policies keep their
// registration order; byName indexes the same slice.
type snapshot struct {
	policies []*rules.Policy
	byName   map[string]*rules.Policy
	version  string
	loadTime time.Time
}

// Registry is the policy registry handle shared by all evaluators.
type Registry struct {
	current atomic.Pointer[snapshot]

	// mu serializes writers only; readers go through the atomic pointer.
	mu     sync.Mutex
	loader Loader
}

// New creates a registry seeded with the given policies. The loader is used
// by Reload to reconstruct the set; a nil loader defaults to the built-in
// definition set.
func New(policies []*rules.Policy, loader Loader) *Registry {
	if loader == nil {
		loader = func() ([]*rules.Policy, error) {
			return rules.Builtins(), nil
		}
	}
	r := &Registry{loader: loader}
	r.current.Store(newSnapshot(policies))
	return r
}

// NewBuiltin creates a registry holding the built-in policy set.
func NewBuiltin() *Registry {
	return New(rules.Builtins(), nil)
}

// newSnapshot builds an immutable snapshot from a policy slice.
func newSnapshot(policies []*rules.Policy) *snapshot {
	s := &snapshot{
		policies: policies,
		byName:   make(map[string]*rules.Policy, len(policies)),
		loadTime: time.Now(),
	}
	h := sha256.New()
	for _, p := range policies {
		s.byName[p.Name] = p
		h.Write([]byte(p.Name))
		h.Write([]byte(p.Version))
		for _, rule := range p.Rules {
			h.Write([]byte(rule.Name))
			h.Write([]byte(rule.Message))
		}
	}
	s.version = fmt.Sprintf("%x", h.Sum(nil))[:16]
	return s
}

// Policies returns all policies in registration order. The returned slice
// belongs to an immutable snapshot and must not be modified.
func (r *Registry) Policies() []*rules.Policy {
	return r.current.Load().policies
}

// Get retrieves a policy by name.
func (r *Registry) Get(name string) (*rules.Policy, bool) {
	p, ok := r.current.Load().byName[name]
	return p, ok
}

// Version returns the current snapshot version hash. The version changes
// whenever the policy set changes.
func (r *Registry) Version() string {
	return r.current.Load().version
}

// LoadTime returns when the current snapshot was installed.
func (r *Registry) LoadTime() time.Time {
	return r.current.Load().loadTime
}

// Replace atomically replaces the entire policy set.
func (r *Registry) Replace(policies []*rules.Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Store(newSnapshot(policies))
}

// Reload reconstructs the policy set from the loader and installs it
// atomically. In-flight evaluations keep their old snapshot.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	policies, err := r.loader()
	if err != nil {
		return fmt.Errorf("policy reload failed: %w", err)
	}
	r.current.Store(newSnapshot(policies))
	return nil
}

// AddRule compiles the rule definition and appends it to the named policy.
func (r *Registry) AddRule(policyName string, def rules.RuleDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	target, ok := snap.byName[policyName]
	if !ok {
		return &NotFoundError{Kind: "policy", Name: policyName}
	}
	if target.Rule(def.Name) != nil {
		return &ConflictError{Policy: policyName, Rule: def.Name}
	}

	// Compile through a single-rule policy def so constraint parsing and
	// kind inference follow the normal load path.
	compiled, err := (&rules.PolicyDef{Name: policyName, Rules: []rules.RuleDef{def}}).Compile()
	if err != nil {
		return err
	}

	r.current.Store(r.rebuild(snap, policyName, func(p *rules.Policy) {
		p.Rules = append(p.Rules, compiled.Rules[0])
	}))
	return nil
}

// UpdateRule replaces the constraint and/or message of an existing rule.
// Identity (name + policy name) and condition are immutable.
func (r *Registry) UpdateRule(policyName, ruleName string, constraint map[string]any, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	target, ok := snap.byName[policyName]
	if !ok {
		return &NotFoundError{Kind: "policy", Name: policyName}
	}
	existing := target.Rule(ruleName)
	if existing == nil {
		return &NotFoundError{Kind: "rule", Name: ruleName, Policy: policyName}
	}

	compiledConstraints := existing.Constraint
	if constraint != nil {
		compiledConstraints = make(map[string]rules.Constraint, len(constraint))
		for path, raw := range constraint {
			c, err := rules.ParseConstraint(raw)
			if err != nil {
				return err
			}
			compiledConstraints[path] = c
		}
	}

	r.current.Store(r.rebuild(snap, policyName, func(p *rules.Policy) {
		for i, rule := range p.Rules {
			if rule.Name != ruleName {
				continue
			}
			updated := *rule
			updated.Constraint = compiledConstraints
			if message != "" {
				updated.Message = message
			}
			p.Rules[i] = &updated
		}
	}))
	return nil
}

// DeleteRule removes a rule from the named policy.
func (r *Registry) DeleteRule(policyName, ruleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	target, ok := snap.byName[policyName]
	if !ok {
		return &NotFoundError{Kind: "policy", Name: policyName}
	}
	if target.Rule(ruleName) == nil {
		return &NotFoundError{Kind: "rule", Name: ruleName, Policy: policyName}
	}

	r.current.Store(r.rebuild(snap, policyName, func(p *rules.Policy) {
		kept := p.Rules[:0]
		for _, rule := range p.Rules {
			if rule.Name != ruleName {
				kept = append(kept, rule)
			}
		}
		p.Rules = kept
	}))
	return nil
}

// rebuild produces a new snapshot where the named policy has been copied
// and passed through mutate; all other policies are shared. Must be called
// with the writer lock held.
func (r *Registry) rebuild(snap *snapshot, policyName string, mutate func(*rules.Policy)) *snapshot {
	policies := make([]*rules.Policy, len(snap.policies))
	for i, p := range snap.policies {
		if p.Name != policyName {
			policies[i] = p
			continue
		}
		clone := *p
		clone.Rules = make([]*rules.Rule, len(p.Rules))
		copy(clone.Rules, p.Rules)
		mutate(&clone)
		policies[i] = &clone
	}
	return newSnapshot(policies)
}

// Stats summarizes the current snapshot.
type Stats struct {
	PolicyCount int
	RuleCount   int
	Version     string
	LoadTime    time.Time
}

// GetStats returns statistics about the current policy set.
func (r *Registry) GetStats() Stats {
	snap := r.current.Load()
	stats := Stats{
		PolicyCount: len(snap.policies),
		Version:     snap.version,
		LoadTime:    snap.loadTime,
	}
	for _, p := range snap.policies {
		stats.RuleCount += len(p.Rules)
	}
	return stats
}
