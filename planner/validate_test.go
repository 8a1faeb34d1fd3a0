package planner

import (
	"encoding/json"
	"testing"
)

func rawStep(action, priority, reasoning string) RawStep {
	return RawStep{Action: action, Priority: priority, Reasoning: reasoning}
}

func TestValidateRewritesUnknownAction(t *testing.T) {
	raw := []RawStep{
		rawStep("save_evidence", "immediate", "preserve the frame"),
		rawStep("launch_drone", "high", "aerial pursuit of the subject"),
		rawStep("log_incident", "medium", "document it"),
	}

	plan := Validate(raw)

	if len(plan.Steps) != len(raw) {
		t.Fatalf("plan has %d steps, want %d: no step may be dropped", len(plan.Steps), len(raw))
	}
	for _, step := range plan.Steps {
		if !IsValidAction(step.Action) {
			t.Errorf("step %d action %q outside the closed vocabulary", step.StepIndex, step.Action)
		}
	}

	// The rewritten step keeps its position within the tier and its rationale.
	var rewritten *ActionStep
	for i := range plan.Steps {
		if plan.Steps[i].Rationale == "aerial pursuit of the subject" {
			rewritten = &plan.Steps[i]
		}
	}
	if rewritten == nil {
		t.Fatal("original rationale of the invalid step was not preserved")
	}
	if rewritten.Action != ActionLogIncident {
		t.Errorf("invalid action rewritten to %q, want %q", rewritten.Action, ActionLogIncident)
	}
}

func TestValidateNormalizesActionSpelling(t *testing.T) {
	plan := Validate([]RawStep{rawStep("Save Evidence", "immediate", "keep it")})
	if plan.Steps[0].Action != ActionSaveEvidence {
		t.Errorf("action = %q, want %q", plan.Steps[0].Action, ActionSaveEvidence)
	}
}

func TestValidateDefaultsPriority(t *testing.T) {
	plan := Validate([]RawStep{
		rawStep("log_incident", "", "no priority given"),
		rawStep("monitor", "someday", "unknown priority"),
	})

	for _, step := range plan.Steps {
		if step.Priority != PriorityMedium {
			t.Errorf("step %q priority = %q, want medium default", step.Action, step.Priority)
		}
	}
}

func TestValidateSortsByPriorityStable(t *testing.T) {
	plan := Validate([]RawStep{
		rawStep("log_incident", "medium", "first medium"),
		rawStep("send_alert", "immediate", "alert"),
		rawStep("monitor", "medium", "second medium"),
		rawStep("notify_staff", "high", "staff"),
	})

	wantOrder := []string{ActionSendAlert, ActionNotifyStaff, ActionLogIncident, ActionMonitor}
	for i, want := range wantOrder {
		if plan.Steps[i].Action != want {
			t.Errorf("step %d action = %q, want %q", i+1, plan.Steps[i].Action, want)
		}
	}

	// Equal-tier steps keep their relative input order.
	if plan.Steps[2].Rationale != "first medium" || plan.Steps[3].Rationale != "second medium" {
		t.Error("stable sort violated for equal-priority steps")
	}

	for i, step := range plan.Steps {
		if step.StepIndex != i+1 {
			t.Errorf("step %d has index %d, want sequential renumbering", i, step.StepIndex)
		}
	}
}

func TestValidateCoercesParameters(t *testing.T) {
	plan := Validate([]RawStep{
		{Action: "monitor", Priority: "high", Parameters: json.RawMessage(`"five minutes"`)},
		{Action: "send_alert", Priority: "high", Parameters: json.RawMessage(`{"channel": "sms"}`)},
	})

	if plan.Steps[0].Parameters == nil || len(plan.Steps[0].Parameters) != 0 {
		t.Errorf("non-object parameters = %v, want empty map", plan.Steps[0].Parameters)
	}
	if got := plan.Steps[1].Parameters["channel"]; got != "sms" {
		t.Errorf("parameters[channel] = %v, want sms", got)
	}
}

func TestValidateStepsStartPending(t *testing.T) {
	plan := Validate([]RawStep{rawStep("save_evidence", "immediate", "keep it")})
	if plan.Steps[0].Status != StatusPending {
		t.Errorf("status = %q, want pending", plan.Steps[0].Status)
	}
}
