package planner

import "github.com/richinex/aegis/analysis"

// Fallback returns the deterministic severity-indexed plan used whenever the
// planning call fails, times out, or produces output failing validation
// entirely. It never fails and always preserves evidence first.
func Fallback(a analysis.FrameAnalysis) ActionPlan {
	base := map[string]any{
		"incident_type": a.Category,
		"severity":      a.Severity.String(),
		"confidence":    a.Confidence,
	}

	evidence := ActionStep{
		Action:     ActionSaveEvidence,
		Priority:   PriorityImmediate,
		Parameters: base,
		Rationale:  "Preserve forensic evidence for investigation",
	}

	var steps []ActionStep
	switch a.Severity {
	case analysis.SeverityCritical:
		steps = []ActionStep{
			evidence,
			{Action: ActionSendAlert, Priority: PriorityImmediate, Parameters: base,
				Rationale: "Immediate notification required for critical threat"},
			{Action: ActionContactAuthorities, Priority: PriorityImmediate, Parameters: base,
				Rationale: "Critical threat warrants law enforcement involvement"},
			{Action: ActionEscalate, Priority: PriorityImmediate,
				Parameters: map[string]any{"target": "security_team", "incident_type": a.Category},
				Rationale:  "Critical threat requires immediate human intervention"},
			{Action: ActionSoundAlarm, Priority: PriorityHigh, Parameters: base,
				Rationale: "Deter the threat and warn people on site"},
			{Action: ActionRecordVideo, Priority: PriorityHigh, Parameters: base,
				Rationale: "Capture continuous footage while the threat is active"},
			{Action: ActionLogIncident, Priority: PriorityHigh, Parameters: base,
				Rationale: "Document incident in security log for audit trail"},
			{Action: ActionMonitor, Priority: PriorityHigh,
				Parameters: map[string]any{"duration": 300, "incident_type": a.Category},
				Rationale:  "Continue monitoring for threat escalation or resolution"},
		}
	case analysis.SeverityHigh:
		steps = []ActionStep{
			evidence,
			{Action: ActionSendAlert, Priority: PriorityImmediate, Parameters: base,
				Rationale: "Immediate notification required for high-severity threat"},
			{Action: ActionNotifyStaff, Priority: PriorityHigh, Parameters: base,
				Rationale: "On-site staff should be aware of the situation"},
			{Action: ActionRecordVideo, Priority: PriorityHigh, Parameters: base,
				Rationale: "Capture continuous footage while the threat is active"},
			{Action: ActionLogIncident, Priority: PriorityHigh, Parameters: base,
				Rationale: "Document incident in security log for audit trail"},
			{Action: ActionMonitor, Priority: PriorityHigh,
				Parameters: map[string]any{"duration": 300, "incident_type": a.Category},
				Rationale:  "Continue monitoring for threat escalation or resolution"},
		}
	case analysis.SeverityMedium:
		steps = []ActionStep{
			evidence,
			{Action: ActionCaptureSnapshot, Priority: PriorityHigh, Parameters: base,
				Rationale: "Keep a high-resolution still of the scene"},
			{Action: ActionLogIncident, Priority: PriorityMedium, Parameters: base,
				Rationale: "Document incident in security log for audit trail"},
			{Action: ActionMonitor, Priority: PriorityMedium,
				Parameters: map[string]any{"duration": 300, "incident_type": a.Category},
				Rationale:  "Continue monitoring for threat escalation or resolution"},
		}
	default: // low
		steps = []ActionStep{
			evidence,
			{Action: ActionLogIncident, Priority: PriorityMedium, Parameters: base,
				Rationale: "Document incident in security log for audit trail"},
		}
	}

	for i := range steps {
		steps[i].Status = StatusPending
	}
	sortAndRenumber(steps)
	return ActionPlan{Steps: steps, Fallback: true}
}
