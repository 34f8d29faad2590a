// Package repair rewrites rejected actions so they satisfy the rules they
// violated.
//
// Three strategies are available: a heuristic pass that applies mechanical
// fixes keyed on the violation's kind, a contextual pass that asks a
// language model for a structured rewrite, and the default hybrid pass
// that runs the heuristic first and escalates only what it could not
// address. Repair never fails hard: a broken LLM response or an
// unavailable model degrades to a clearly-flagged low-confidence result.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guardian-hq/guardian/pkg/llm"
	"guardian-hq/guardian/pkg/policy/engine"
)

// Strategy selects how a repair is produced.
type Strategy string

const (
	// StrategyHeuristic applies mechanical kind-keyed fixes only.
	StrategyHeuristic Strategy = "heuristic"

	// StrategyLLM delegates the rewrite to a language model.
	StrategyLLM Strategy = "llm"

	// StrategyHybrid runs the heuristic first and escalates leftovers to
	// the language model. This is the default.
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy validates a strategy string from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyHeuristic, StrategyLLM, StrategyHybrid:
		return Strategy(s), nil
	case "":
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("unknown repair strategy %q", s)
	}
}

// Result is the outcome of one repair attempt.
type Result struct {
	// Strategy is the strategy that produced the repaired action.
	Strategy Strategy `json:"strategy_used"`

	// OriginalAction is the action as submitted, untouched.
	OriginalAction map[string]any `json:"original_action"`

	// RepairedAction is the modified action intended to pass
	// re-evaluation.
	RepairedAction map[string]any `json:"repaired_action"`

	// Explanation describes what was changed and why.
	Explanation string `json:"repair_explanation"`

	// Confidence is the repair's self-assessed likelihood of passing
	// re-evaluation, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Addressed and Remaining partition the violation messages.
	Addressed []string `json:"violations_addressed"`
	Remaining []string `json:"violations_remaining"`
}

// RepairMetrics receives repair telemetry. A nil recorder disables metrics.
type RepairMetrics interface {
	RecordRepair(strategy, outcome string)
	ObserveConfidence(confidence float64)
}

// Config contains configuration for the repair service.
type Config struct {
	// Strategy selects heuristic, llm, or hybrid. Default: hybrid.
	Strategy Strategy

	// LLMTimeout bounds a single language model call. A timeout degrades
	// to a low-confidence result rather than hanging the caller.
	// Default: 20s.
	LLMTimeout time.Duration
}

// DefaultConfig returns the default repair configuration.
func DefaultConfig() *Config {
	return &Config{
		Strategy:   StrategyHybrid,
		LLMTimeout: 20 * time.Second,
	}
}

// Service produces repaired actions from evaluations' violations.
type Service struct {
	config  *Config
	client  llm.Client
	logger  *slog.Logger
	metrics RepairMetrics
}

// New creates a repair service. The client may be nil when the strategy is
// heuristic; llm and hybrid strategies degrade gracefully without one.
func New(config *Config, client llm.Client, logger *slog.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if _, err := ParseStrategy(string(config.Strategy)); err != nil {
		return nil, err
	}
	if config.Strategy == "" {
		config.Strategy = StrategyHybrid
	}
	if config.LLMTimeout <= 0 {
		config.LLMTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config: config,
		client: client,
		logger: logger.With("component", "repair"),
	}, nil
}

// SetMetrics attaches a metrics recorder. Call before serving traffic.
func (s *Service) SetMetrics(m RepairMetrics) {
	s.metrics = m
}

// Repair produces a modified action intended to satisfy the violated
// rules. domainCtx optionally carries additional context for the language
// model prompt. An empty violation list returns immediately with the
// action unchanged and confidence 1.0.
func (s *Service) Repair(ctx context.Context, action map[string]any, violations []engine.RuleResult, domainCtx map[string]any) *Result {
	if len(violations) == 0 {
		return &Result{
			Strategy:       s.config.Strategy,
			OriginalAction: action,
			RepairedAction: copyAction(action),
			Explanation:    "no violations to repair",
			Confidence:     1.0,
		}
	}

	var result *Result
	switch s.config.Strategy {
	case StrategyHeuristic:
		result = s.heuristic(action, violations)
		if result == nil {
			// Nothing matched; report the no-op honestly.
			result = &Result{
				Strategy:       StrategyHeuristic,
				OriginalAction: action,
				RepairedAction: copyAction(action),
				Explanation:    "no heuristic applies to the reported violations",
				Confidence:     0,
				Remaining:      messages(violations),
			}
		}
	case StrategyLLM:
		result = s.llmRepair(ctx, action, violations, domainCtx)
	default:
		result = s.hybrid(ctx, action, violations, domainCtx)
	}

	s.record(result)
	return result
}

// hybrid runs the heuristic first, escalating what remains to the model.
func (s *Service) hybrid(ctx context.Context, action map[string]any, violations []engine.RuleResult, domainCtx map[string]any) *Result {
	heuristic := s.heuristic(action, violations)
	if heuristic == nil {
		// No heuristic matched anything; delegate entirely.
		result := s.llmRepair(ctx, action, violations, domainCtx)
		result.Strategy = StrategyHybrid
		return result
	}

	if len(heuristic.Remaining) == 0 && heuristic.Confidence >= 0.7 {
		heuristic.Strategy = StrategyHybrid
		return heuristic
	}

	// Escalate only the unresolved violations, applying the model's
	// rewrite on top of the heuristic's already-repaired action.
	remaining := filterByMessage(violations, heuristic.Remaining)
	llmResult := s.llmRepairAction(ctx, heuristic.RepairedAction, remaining, domainCtx)

	merged := &Result{
		Strategy:       StrategyHybrid,
		OriginalAction: action,
		RepairedAction: llmResult.RepairedAction,
		Explanation:    heuristic.Explanation + " | " + llmResult.Explanation,
		Confidence:     (heuristic.Confidence + llmResult.Confidence) / 2,
		Addressed:      union(heuristic.Addressed, llmResult.Addressed),
		Remaining:      llmResult.Remaining,
	}
	return merged
}

// record emits metrics for a completed repair.
func (s *Service) record(result *Result) {
	if s.metrics == nil {
		return
	}
	outcome := "full"
	switch {
	case len(result.Addressed) == 0 && len(result.Remaining) > 0:
		outcome = "none"
	case len(result.Remaining) > 0:
		outcome = "partial"
	}
	s.metrics.RecordRepair(string(result.Strategy), outcome)
	s.metrics.ObserveConfidence(result.Confidence)
}

// messages extracts the violation messages in order.
func messages(violations []engine.RuleResult) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Message
	}
	return out
}

// filterByMessage returns the violations whose messages appear in keep.
func filterByMessage(violations []engine.RuleResult, keep []string) []engine.RuleResult {
	keepSet := make(map[string]bool, len(keep))
	for _, m := range keep {
		keepSet[m] = true
	}
	var out []engine.RuleResult
	for _, v := range violations {
		if keepSet[v.Message] {
			out = append(out, v)
		}
	}
	return out
}

// union concatenates b onto a, skipping duplicates, preserving order.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// copyAction deep-copies an action map, including one nested map level,
// the same depth the numeric repair heuristics operate on.
func copyAction(action map[string]any) map[string]any {
	out := make(map[string]any, len(action))
	for k, v := range action {
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
