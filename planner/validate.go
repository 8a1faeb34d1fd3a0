package planner

import (
	"encoding/json"
	"sort"
	"strings"
)

// defaultRationale fills steps the model left unexplained.
const defaultRationale = "Standard security procedure"

// RawStep is the untrusted wire shape of one planner step. Parameters arrive
// as raw JSON so a non-object value cannot fail the whole plan decode.
type RawStep struct {
	Step       int             `json:"step"`
	Action     string          `json:"action"`
	Priority   string          `json:"priority"`
	Parameters json.RawMessage `json:"parameters"`
	Reasoning  string          `json:"reasoning"`
}

// Validate converts raw planner output into an executable plan.
//
// Every step survives: actions outside the closed vocabulary are rewritten to
// log_incident with the original rationale retained for audit, never dropped.
// Steps are stably sorted by priority tier and renumbered to match the final
// order.
func Validate(raw []RawStep) ActionPlan {
	steps := make([]ActionStep, 0, len(raw))
	for _, r := range raw {
		action := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Action)), " ", "_")
		if !IsValidAction(action) {
			action = ActionLogIncident
		}

		rationale := r.Reasoning
		if rationale == "" {
			rationale = defaultRationale
		}

		steps = append(steps, ActionStep{
			Action:     action,
			Priority:   ParsePriority(r.Priority),
			Parameters: coerceParameters(r.Parameters),
			Rationale:  rationale,
			Status:     StatusPending,
		})
	}

	sortAndRenumber(steps)
	return ActionPlan{Steps: steps}
}

// sortAndRenumber orders steps immediate > high > medium > low, keeping the
// relative input order within a tier, then assigns sequential indices.
func sortAndRenumber(steps []ActionStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Priority.rank() < steps[j].Priority.rank()
	})
	for i := range steps {
		steps[i].StepIndex = i + 1
	}
}

func coerceParameters(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil || params == nil {
		return map[string]any{}
	}
	return params
}
