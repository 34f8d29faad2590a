package rules

// BuiltinDefs returns the fixed built-in policy definition set. The registry
// reconstructs its snapshot from these definitions at startup and on every
// full reload.
//
// Four policies: budget limits, action gates, prediction-safety guards, and
// data-access rules.
func BuiltinDefs() []PolicyDef {
	return []PolicyDef{
		{
			Name:        "budget_limits",
			Version:     "1.0.0",
			Description: "Spend ceilings on proposed actions",
			Rules: []RuleDef{
				{
					Name:       "action_cost_cap",
					Kind:       "budget",
					Condition:  map[string]any{"action.billable": true},
					Constraint: map[string]any{"action.cost": 500.0},
					Message:    "Action cost exceeds the configured budget cap",
				},
				{
					Name:       "session_budget",
					Kind:       "budget",
					Condition:  map[string]any{"session.tracked": true},
					Constraint: map[string]any{"session.total_cost": map[string]any{"min": 0.0, "max": 5000.0}},
					Message:    "Session spend exceeds the cumulative cost budget",
				},
			},
		},
		{
			Name:        "action_gates",
			Version:     "1.0.0",
			Description: "Role and approval gates on sensitive actions",
			Rules: []RuleDef{
				{
					Name:       "junior_transfer_limit",
					Condition:  map[string]any{"user.role": "junior", "action.type": "transfer"},
					Constraint: map[string]any{"action.amount": 1000.0},
					Message:    "Junior users cannot transfer more than $1,000",
				},
				{
					Name:       "high_risk_approval",
					Kind:       "approval",
					Condition:  map[string]any{"risk.level": "high"},
					Constraint: map[string]any{"approval.granted": true},
					Message:    "High-risk actions require approval before execution",
				},
				{
					Name:       "destructive_action_gate",
					Kind:       "approval",
					Condition:  map[string]any{"action.destructive": true},
					Constraint: map[string]any{"approval.granted": true},
					Message:    "Destructive actions require explicit authorization",
				},
			},
		},
		{
			Name:        "prediction_safety",
			Version:     "1.0.0",
			Description: "Confidence and uncertainty guards on model-driven actions",
			Rules: []RuleDef{
				{
					Name:       "confidence_floor",
					Kind:       "threshold",
					Condition:  map[string]any{"prediction.automated": true},
					Constraint: map[string]any{"prediction.confidence": map[string]any{"min": 0.7, "max": 1.0}},
					Message:    "Prediction confidence is below the automation safety threshold",
				},
				{
					Name:       "uncertainty_ceiling",
					Kind:       "threshold",
					Condition:  map[string]any{"prediction.automated": true},
					Constraint: map[string]any{"prediction.uncertainty": 0.3},
					Message:    "Prediction uncertainty exceeds the allowed limit",
				},
			},
		},
		{
			Name:        "data_access",
			Version:     "1.0.0",
			Description: "Classification and PII rules on data touched by actions",
			Rules: []RuleDef{
				{
					Name:       "restricted_data_clearance",
					Condition:  map[string]any{"data.classification": "restricted"},
					Constraint: map[string]any{"user.clearance": map[string]any{"eq": "secret"}},
					Message:    "Restricted data access requires secret clearance authorization",
				},
				{
					Name:       "pii_export_gate",
					Kind:       "approval",
					Condition:  map[string]any{"action.type": "export", "data.contains_pii": true},
					Constraint: map[string]any{"approval.granted": true},
					Message:    "Exporting PII requires explicit approval",
				},
				{
					Name:       "anonymous_read_only",
					Condition:  map[string]any{"user.role": "anonymous"},
					Constraint: map[string]any{"action.type": map[string]any{"eq": "read"}},
					Message:    "Anonymous users may only perform read actions",
				},
			},
		},
	}
}

// Builtins compiles the built-in definition set. The definitions are fixed
// and known-good, so a compile failure here is a programming error.
func Builtins() []*Policy {
	policies, err := CompileAll(BuiltinDefs())
	if err != nil {
		panic("builtin policy definitions failed to compile: " + err.Error())
	}
	return policies
}
