package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"guardian-hq/guardian/pkg/policy/registry"
	"guardian-hq/guardian/pkg/policy/rules"
)

// policySummary is the wire shape of a policy.
type policySummary struct {
	Name        string        `json:"name"`
	Version     string        `json:"version,omitempty"`
	Description string        `json:"description,omitempty"`
	Rules       []ruleSummary `json:"rules"`
}

// ruleSummary is the wire shape of a rule. Constraints are rendered as
// their string form; the raw definition shape is write-only.
type ruleSummary struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Condition  map[string]any    `json:"condition,omitempty"`
	Constraint map[string]string `json:"constraint"`
	Message    string            `json:"message"`
}

func summarize(p *rules.Policy) policySummary {
	out := policySummary{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Rules:       make([]ruleSummary, 0, len(p.Rules)),
	}
	for _, r := range p.Rules {
		constraint := make(map[string]string, len(r.Constraint))
		for path, c := range r.Constraint {
			constraint[path] = c.String()
		}
		out.Rules = append(out.Rules, ruleSummary{
			Name:       r.Name,
			Kind:       string(r.Kind),
			Condition:  r.Condition,
			Constraint: constraint,
			Message:    r.Message,
		})
	}
	return out
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()

	policies := reg.Policies()
	summaries := make([]policySummary, 0, len(policies))
	for _, p := range policies {
		summaries = append(summaries, summarize(p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":  reg.Version(),
		"policies": summaries,
	})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, ok := s.engine.Registry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "policy not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, summarize(p))
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var def rules.RuleDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule definition: "+err.Error())
		return
	}

	if err := s.engine.Registry().AddRule(name, def); err != nil {
		writeRegistryError(w, err)
		return
	}

	s.logger.Info("rule added", "policy", name, "rule", def.Name)
	writeJSON(w, http.StatusCreated, map[string]string{
		"policy": name,
		"rule":   def.Name,
	})
}

// ruleUpdate is the wire shape of a rule update. Only the constraint and
// message are mutable; identity and condition are fixed at creation.
type ruleUpdate struct {
	Constraint map[string]any `json:"constraint"`
	Message    string         `json:"message"`
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rule := r.PathValue("rule")

	var update ruleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule update: "+err.Error())
		return
	}

	if err := s.engine.Registry().UpdateRule(name, rule, update.Constraint, update.Message); err != nil {
		writeRegistryError(w, err)
		return
	}

	s.logger.Info("rule updated", "policy", name, "rule", rule)
	writeJSON(w, http.StatusOK, map[string]string{
		"policy": name,
		"rule":   rule,
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rule := r.PathValue("rule")

	if err := s.engine.Registry().DeleteRule(name, rule); err != nil {
		writeRegistryError(w, err)
		return
	}

	s.logger.Info("rule deleted", "policy", name, "rule", rule)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()

	if err := reg.Reload(); err != nil {
		writeError(w, http.StatusBadRequest, "reload failed: "+err.Error())
		return
	}

	s.logger.Info("policies reloaded", "version", reg.Version())
	writeJSON(w, http.StatusOK, map[string]any{
		"version": reg.Version(),
	})
}

// evaluateRequest is the wire shape of a test evaluation.
type evaluateRequest struct {
	Context  map[string]any `json:"context"`
	Policies []string       `json:"policies,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid evaluation request: "+err.Error())
		return
	}
	if req.Context == nil {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}

	result := s.engine.EvaluateContext(r.Context(), req.Context, req.Policies)
	writeJSON(w, http.StatusOK, result)
}

// repairRequest is the wire shape of a repair request. The context is
// evaluated first; the action is repaired against any violations found.
type repairRequest struct {
	Action   map[string]any `json:"action"`
	Context  map[string]any `json:"context"`
	Policies []string       `json:"policies,omitempty"`
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	if s.repair == nil {
		writeError(w, http.StatusNotFound, "no repair service configured")
		return
	}

	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid repair request: "+err.Error())
		return
	}
	if req.Action == nil || req.Context == nil {
		writeError(w, http.StatusBadRequest, "action and context are required")
		return
	}

	evaluation := s.engine.EvaluateContext(r.Context(), req.Context, req.Policies)
	result := s.repair.Repair(r.Context(), req.Action, evaluation.Violations, req.Context)

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluation": evaluation,
		"repair":     result,
	})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.guard == nil {
		writeError(w, http.StatusNotFound, "no guard configured")
		return
	}

	entries := s.guard.AuditLog()

	if tool := r.URL.Query().Get("tool"); tool != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Tool == tool {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(entries) {
			// Keep the most recent entries; the ring is ordered oldest first.
			entries = entries[len(entries)-limit:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	if s.guard == nil {
		writeError(w, http.StatusNotFound, "no guard configured")
		return
	}
	writeJSON(w, http.StatusOK, s.guard.GetStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Registry().GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"policy_count":   stats.PolicyCount,
		"rule_count":     stats.RuleCount,
		"policy_version": stats.Version,
	})
}

// writeRegistryError maps registry and compilation errors to HTTP statuses.
func writeRegistryError(w http.ResponseWriter, err error) {
	var notFound *registry.NotFoundError
	var conflict *registry.ConflictError
	var config *rules.ConfigError

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &config):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
