// Package policy decides how much inference effort each frame deserves.
//
// The Selector is the single place escalation policy lives. It is a pure
// function of its inputs so the policy can be unit-tested without any I/O.
package policy

import "github.com/richinex/aegis/llm"

// DefaultEscalationThreshold is the risk estimate above which a frame is
// escalated to the deep tier.
const DefaultEscalationThreshold = 70

// DefaultPressureLimit is the number of recent incidents above which frames
// are escalated even at low risk.
const DefaultPressureLimit = 3

// Selector maps frame-level signals to an inference configuration.
type Selector struct {
	// EscalationThreshold is the risk estimate (0-100) above which the deep
	// tier is used.
	EscalationThreshold int
	// PressureLimit is the trailing-window incident count above which the
	// deep tier is used.
	PressureLimit int
}

// NewSelector creates a selector with the given thresholds. Non-positive
// values fall back to the defaults.
func NewSelector(escalationThreshold, pressureLimit int) *Selector {
	if escalationThreshold <= 0 {
		escalationThreshold = DefaultEscalationThreshold
	}
	if pressureLimit <= 0 {
		pressureLimit = DefaultPressureLimit
	}
	return &Selector{
		EscalationThreshold: escalationThreshold,
		PressureLimit:       pressureLimit,
	}
}

// Select picks the inference configuration for one frame.
// Rules are evaluated in order; the first match wins:
//
//  1. An ongoing investigation always gets maximum scrutiny.
//  2. High risk escalates tier and fidelity but not reasoning depth.
//  3. Sustained incident pressure escalates the tier.
//  4. Everything else takes the fast path.
func (s *Selector) Select(riskEstimate int, investigationID string, recentIncidentPressure int) llm.InferenceConfig {
	if investigationID != "" {
		return llm.InferenceConfig{
			Tier:           llm.TierDeep,
			ReasoningDepth: llm.DepthHigh,
			MediaFidelity:  llm.FidelityHigh,
		}
	}

	if riskEstimate > s.EscalationThreshold {
		return llm.InferenceConfig{
			Tier:           llm.TierDeep,
			ReasoningDepth: llm.DepthLow,
			MediaFidelity:  llm.FidelityHigh,
		}
	}

	if recentIncidentPressure > s.PressureLimit {
		return llm.InferenceConfig{
			Tier:           llm.TierDeep,
			ReasoningDepth: llm.DepthLow,
			MediaFidelity:  llm.FidelityHigh,
		}
	}

	return llm.InferenceConfig{
		Tier:           llm.TierFast,
		ReasoningDepth: llm.DepthLow,
		MediaFidelity:  llm.FidelityMedium,
	}
}
