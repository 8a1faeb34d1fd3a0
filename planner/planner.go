package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/richinex/aegis/analysis"
	jsonutil "github.com/richinex/aegis/internal/json"
	"github.com/richinex/aegis/llm"
)

// plannerPrompt frames the planning call. The model must answer with a JSON
// array of steps; anything else falls through to the deterministic fallback.
const plannerPrompt = `You are a security response planner. Create executable action plans.

INCIDENT DETAILS:
- Type: %s
- Severity: %s
- Reasoning: %s
- Confidence: %d%%

CREATE structured response plan with specific actions.

RESPOND with ONLY valid JSON array:
[
  {
    "step": 1,
    "action": "save_evidence|send_alert|log_incident|lock_door|sound_alarm|contact_authorities|monitor|escalate|notify_staff|record_video|capture_snapshot",
    "priority": "immediate|high|medium|low",
    "parameters": {},
    "reasoning": "why this action is needed"
  }
]

PRIORITIZATION:
1. Evidence preservation (immediate)
2. Alert relevant parties (high)
3. Prevent escalation (high)
4. Document thoroughly (medium)

Be specific and actionable. Focus on automated responses.`

// inferencer is the slice of the inference client the planner needs.
type inferencer interface {
	Analyze(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Planner generates response plans from confirmed incidents.
type Planner struct {
	client inferencer
	logger *slog.Logger
}

// New creates a planner. A nil logger falls back to slog.Default().
func New(client inferencer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// Plan produces a validated plan for an incident. Any planning failure is
// recovered with the deterministic fallback; Plan itself never fails.
func (p *Planner) Plan(ctx context.Context, a analysis.FrameAnalysis) ActionPlan {
	plan, err := p.generate(ctx, a)
	if err != nil {
		p.logger.Warn("planning failed, using fallback plan",
			"error", err,
			"severity", a.Severity.String(),
			"category", a.Category)
		return Fallback(a)
	}
	return plan
}

func (p *Planner) generate(ctx context.Context, a analysis.FrameAnalysis) (ActionPlan, error) {
	prompt := fmt.Sprintf(plannerPrompt, a.Category, a.Severity, a.Reasoning, a.Confidence)

	resp, err := p.client.Analyze(ctx, llm.Request{
		Prompt:     prompt,
		Config:     planningConfig(a.Severity),
		JSONOutput: true,
	})
	if err != nil {
		return ActionPlan{}, fmt.Errorf("planning call: %w", err)
	}

	rawJSON, err := jsonutil.ExtractJSON(resp.Content)
	if err != nil {
		return ActionPlan{}, fmt.Errorf("planner output: %w", err)
	}
	if err := checkPlanShape([]byte(rawJSON)); err != nil {
		return ActionPlan{}, err
	}

	var raw []RawStep
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return ActionPlan{}, fmt.Errorf("decode plan steps: %w", err)
	}

	return Validate(raw), nil
}

// planningConfig escalates the planning call itself for severe incidents.
func planningConfig(severity analysis.Severity) llm.InferenceConfig {
	cfg := llm.InferenceConfig{
		Tier:           llm.TierFast,
		ReasoningDepth: llm.DepthLow,
		MediaFidelity:  llm.FidelityLow,
	}
	if severity == analysis.SeverityHigh || severity == analysis.SeverityCritical {
		cfg.Tier = llm.TierDeep
		cfg.ReasoningDepth = llm.DepthHigh
	}
	return cfg
}
