package repair

import (
	"context"
	"encoding/json"
	"strings"

	"guardian-hq/guardian/pkg/llm"
	"guardian-hq/guardian/pkg/policy/engine"
)

// llmResponse is the structured object the model is asked to return.
type llmResponse struct {
	RepairedAction map[string]any `json:"repaired_action"`
	Explanation    string         `json:"explanation"`
	Confidence     float64        `json:"confidence"`
}

// llmRepair delegates the full rewrite to the language model.
func (s *Service) llmRepair(ctx context.Context, action map[string]any, violations []engine.RuleResult, domainCtx map[string]any) *Result {
	return s.llmRepairAction(ctx, action, violations, domainCtx)
}

// llmRepairAction asks the model to rewrite action so the given violations
// no longer trigger. Any failure (no client, transport error, timeout, or
// an unparseable response) degrades to the original action with zero
// confidence rather than surfacing an error to the caller.
func (s *Service) llmRepairAction(ctx context.Context, action map[string]any, violations []engine.RuleResult, domainCtx map[string]any) *Result {
	degraded := func(reason string) *Result {
		return &Result{
			Strategy:       StrategyLLM,
			OriginalAction: action,
			RepairedAction: copyAction(action),
			Explanation:    reason,
			Confidence:     0,
			Remaining:      messages(violations),
		}
	}

	if s.client == nil {
		return degraded("language model repair unavailable: no client configured")
	}

	prompt, err := buildPrompt(action, violations, domainCtx)
	if err != nil {
		return degraded("language model repair unavailable: " + err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	defer cancel()

	resp, err := s.client.Complete(callCtx, &llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		s.logger.Warn("language model repair failed", "error", err)
		return degraded("language model repair failed: " + err.Error())
	}

	parsed, err := parseRepairResponse(resp.Content)
	if err != nil {
		s.logger.Warn("language model repair response unparseable", "error", err)
		return degraded("language model returned an unparseable repair: " + err.Error())
	}

	return &Result{
		Strategy:       StrategyLLM,
		OriginalAction: action,
		RepairedAction: parsed.RepairedAction,
		Explanation:    parsed.Explanation,
		Confidence:     clamp01(parsed.Confidence),
		Addressed:      messages(violations),
	}
}

// parseRepairResponse extracts the structured repair object from the model
// output, tolerating markdown code fences around the JSON.
func parseRepairResponse(content string) (*llmResponse, error) {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, err
	}
	if parsed.RepairedAction == nil {
		return nil, errMissingAction
	}
	return &parsed, nil
}

var errMissingAction = jsonError("response object has no repaired_action")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
