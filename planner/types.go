// Package planner turns a confirmed incident into a validated, prioritized
// response plan, falling back to deterministic plans when the model fails.
//
// Information Hiding:
// - The closed action vocabulary and its safe default
// - Priority ordering and step renumbering rules
// - Fallback plan composition per severity
package planner

import "strings"

// The closed action vocabulary. Anything outside this set is rewritten to
// ActionLogIncident before execution.
const (
	ActionSaveEvidence       = "save_evidence"
	ActionSendAlert          = "send_alert"
	ActionLogIncident        = "log_incident"
	ActionLockDoor           = "lock_door"
	ActionSoundAlarm         = "sound_alarm"
	ActionContactAuthorities = "contact_authorities"
	ActionMonitor            = "monitor"
	ActionEscalate           = "escalate"
	ActionNotifyStaff        = "notify_staff"
	ActionRecordVideo        = "record_video"
	ActionCaptureSnapshot    = "capture_snapshot"
)

var validActions = map[string]struct{}{
	ActionSaveEvidence:       {},
	ActionSendAlert:          {},
	ActionLogIncident:        {},
	ActionLockDoor:           {},
	ActionSoundAlarm:         {},
	ActionContactAuthorities: {},
	ActionMonitor:            {},
	ActionEscalate:           {},
	ActionNotifyStaff:        {},
	ActionRecordVideo:        {},
	ActionCaptureSnapshot:    {},
}

// IsValidAction reports whether an action belongs to the closed vocabulary.
func IsValidAction(action string) bool {
	_, ok := validActions[action]
	return ok
}

// Priority orders action steps within a plan.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// ParsePriority normalizes a raw priority string, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityImmediate:
		return PriorityImmediate
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// rank orders priorities for sorting; lower sorts first.
func (p Priority) rank() int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// StepStatus tracks one step through execution.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusExecuting StepStatus = "executing"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
)

// ActionStep is one validated, executable response action.
type ActionStep struct {
	StepIndex  int            `json:"step"`
	Action     string         `json:"action"`
	Priority   Priority       `json:"priority"`
	Parameters map[string]any `json:"parameters"`
	Rationale  string         `json:"reasoning"`
	Status     StepStatus     `json:"status"`
}

// ActionPlan is an ordered sequence of steps for one incident, sorted by
// priority tier. Immutable once execution begins.
type ActionPlan struct {
	Steps []ActionStep `json:"steps"`
	// Fallback marks plans generated deterministically after a planning
	// failure, so downstream consumers can tell them apart.
	Fallback bool `json:"fallback"`
}
