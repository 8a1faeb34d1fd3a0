// Package analysis turns raw inference text into strict frame analyses and
// maintains the bounded temporal context shared across frames.
//
// Information Hiding:
// - Wire format of the model's analysis JSON
// - Coercion and clamping rules for untrusted fields
// - Context window eviction policy
package analysis

import "time"

// FrameAnalysis is one normalized inference result for one frame.
// Immutable after creation.
type FrameAnalysis struct {
	FrameNumber        int       `json:"frame_number"`
	Timestamp          time.Time `json:"timestamp"`
	Incident           bool      `json:"incident"`
	Category           string    `json:"type"`
	Severity           Severity  `json:"severity"`
	Confidence         int       `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	Subjects           []string  `json:"subjects"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// DefaultAnalysis returns the safe substitute used when a frame could not be
// analyzed. Never an incident, zero confidence, cause recorded in reasoning.
func DefaultAnalysis(frameNumber int, cause string) FrameAnalysis {
	return FrameAnalysis{
		FrameNumber:        frameNumber,
		Timestamp:          time.Now().UTC(),
		Incident:           false,
		Category:           "error",
		Severity:           SeverityLow,
		Confidence:         0,
		Reasoning:          cause,
		Subjects:           []string{},
		RecommendedActions: []string{},
	}
}
