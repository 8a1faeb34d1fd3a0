package planner

import "fmt"

var actionDescriptions = map[string]string{
	ActionSaveEvidence:       "Save frame snapshot to evidence store",
	ActionSendAlert:          "Send alert to security personnel",
	ActionLogIncident:        "Record incident details in system log",
	ActionLockDoor:           "Trigger automated door lock",
	ActionSoundAlarm:         "Activate audible alarm system",
	ActionContactAuthorities: "Notify law enforcement automatically",
	ActionMonitor:            "Continue active monitoring of area",
	ActionEscalate:           "Escalate to human security team",
	ActionNotifyStaff:        "Send notification to on-site staff",
	ActionRecordVideo:        "Start continuous video recording",
	ActionCaptureSnapshot:    "Capture high-resolution snapshot",
}

// ActionDescription returns a human-readable description of an action for
// display and audit records.
func ActionDescription(action string) string {
	if desc, ok := actionDescriptions[action]; ok {
		return desc
	}
	return fmt.Sprintf("Execute %s", action)
}
