package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/richinex/aegis/analysis"
	"github.com/richinex/aegis/llm"
)

// fakeInferencer returns a canned response or error.
type fakeInferencer struct {
	content string
	err     error
	lastReq llm.Request
}

func (f *fakeInferencer) Analyze(_ context.Context, req llm.Request) (llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.content}, nil
}

func TestPlanValidResponse(t *testing.T) {
	fake := &fakeInferencer{content: `[
		{"step": 1, "action": "save_evidence", "priority": "immediate", "parameters": {}, "reasoning": "keep the frame"},
		{"step": 2, "action": "send_alert", "priority": "high", "parameters": {}, "reasoning": "tell someone"}
	]`}
	p := New(fake, nil)

	plan := p.Plan(context.Background(), incidentWithSeverity(analysis.SeverityHigh))

	if plan.Fallback {
		t.Error("valid planner output should not produce a fallback plan")
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("plan has %d steps, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Action != ActionSaveEvidence {
		t.Errorf("first step = %q, want save_evidence", plan.Steps[0].Action)
	}
	if !fake.lastReq.JSONOutput {
		t.Error("planning request should ask for JSON output")
	}
}

func TestPlanEmptyArrayFallsBack(t *testing.T) {
	fake := &fakeInferencer{content: `[]`}
	p := New(fake, nil)

	plan := p.Plan(context.Background(), incidentWithSeverity(analysis.SeverityCritical))

	if !plan.Fallback {
		t.Fatal("empty plan must trigger the fallback")
	}
	if len(plan.Steps) != 8 {
		t.Errorf("critical fallback has %d steps, want 8", len(plan.Steps))
	}
	first := plan.Steps[0]
	if first.Action != ActionSaveEvidence || first.Priority != PriorityImmediate {
		t.Errorf("first fallback step = %q/%q, want save_evidence/immediate", first.Action, first.Priority)
	}
}

func TestPlanCallFailureFallsBack(t *testing.T) {
	fake := &fakeInferencer{err: errors.New("connection reset")}
	p := New(fake, nil)

	plan := p.Plan(context.Background(), incidentWithSeverity(analysis.SeverityMedium))

	if !plan.Fallback {
		t.Fatal("failed planning call must trigger the fallback")
	}
	if len(plan.Steps) != 4 {
		t.Errorf("medium fallback has %d steps, want 4", len(plan.Steps))
	}
}

func TestPlanNonArrayOutputFallsBack(t *testing.T) {
	fake := &fakeInferencer{content: `{"action": "save_evidence"}`}
	p := New(fake, nil)

	plan := p.Plan(context.Background(), incidentWithSeverity(analysis.SeverityLow))
	if !plan.Fallback {
		t.Error("object-shaped planner output must trigger the fallback")
	}
}

func TestPlanFencedArrayAccepted(t *testing.T) {
	fake := &fakeInferencer{content: "```json\n[{\"step\": 1, \"action\": \"log_incident\", \"priority\": \"medium\", \"parameters\": {}, \"reasoning\": \"note it\"}]\n```"}
	p := New(fake, nil)

	plan := p.Plan(context.Background(), incidentWithSeverity(analysis.SeverityLow))
	if plan.Fallback {
		t.Error("fenced JSON array should be accepted, not fall back")
	}
}

func TestPlanningConfigEscalatesForSevereIncidents(t *testing.T) {
	if cfg := planningConfig(analysis.SeverityLow); cfg.Tier != llm.TierFast {
		t.Errorf("low severity planning tier = %v, want fast", cfg.Tier)
	}
	if cfg := planningConfig(analysis.SeverityCritical); cfg.Tier != llm.TierDeep {
		t.Errorf("critical severity planning tier = %v, want deep", cfg.Tier)
	}
}

func TestActionDescription(t *testing.T) {
	if desc := ActionDescription(ActionLockDoor); desc != "Trigger automated door lock" {
		t.Errorf("ActionDescription(lock_door) = %q", desc)
	}
	if desc := ActionDescription("unknown_thing"); desc != "Execute unknown_thing" {
		t.Errorf("ActionDescription fallback = %q", desc)
	}
}
