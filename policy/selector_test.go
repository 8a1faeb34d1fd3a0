package policy

import (
	"testing"

	"github.com/richinex/aegis/llm"
)

func TestSelectInvestigationAlwaysDeep(t *testing.T) {
	s := NewSelector(70, 3)

	// Even a zero-risk frame gets full scrutiny inside an investigation.
	cfg := s.Select(0, "inc-42", 0)

	if cfg.Tier != llm.TierDeep {
		t.Errorf("Tier = %v, want deep", cfg.Tier)
	}
	if cfg.ReasoningDepth != llm.DepthHigh {
		t.Errorf("ReasoningDepth = %v, want high", cfg.ReasoningDepth)
	}
	if cfg.MediaFidelity != llm.FidelityHigh {
		t.Errorf("MediaFidelity = %v, want high", cfg.MediaFidelity)
	}
}

func TestSelectRules(t *testing.T) {
	s := NewSelector(70, 3)

	tests := []struct {
		name            string
		risk            int
		investigationID string
		pressure        int
		wantTier        llm.Tier
		wantDepth       llm.ReasoningDepth
		wantFidelity    llm.MediaFidelity
	}{
		{
			name:         "calm frame takes fast path",
			risk:         10,
			wantTier:     llm.TierFast,
			wantDepth:    llm.DepthLow,
			wantFidelity: llm.FidelityMedium,
		},
		{
			name:         "risk at threshold stays fast",
			risk:         70,
			wantTier:     llm.TierFast,
			wantDepth:    llm.DepthLow,
			wantFidelity: llm.FidelityMedium,
		},
		{
			name:         "risk above threshold escalates tier and fidelity",
			risk:         71,
			wantTier:     llm.TierDeep,
			wantDepth:    llm.DepthLow,
			wantFidelity: llm.FidelityHigh,
		},
		{
			name:         "pressure at limit stays fast",
			risk:         10,
			pressure:     3,
			wantTier:     llm.TierFast,
			wantDepth:    llm.DepthLow,
			wantFidelity: llm.FidelityMedium,
		},
		{
			name:         "pressure above limit escalates tier",
			risk:         10,
			pressure:     4,
			wantTier:     llm.TierDeep,
			wantDepth:    llm.DepthLow,
			wantFidelity: llm.FidelityHigh,
		},
		{
			name:            "investigation wins over low risk and low pressure",
			risk:            0,
			investigationID: "inc-1",
			wantTier:        llm.TierDeep,
			wantDepth:       llm.DepthHigh,
			wantFidelity:    llm.FidelityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := s.Select(tt.risk, tt.investigationID, tt.pressure)
			if cfg.Tier != tt.wantTier {
				t.Errorf("Tier = %v, want %v", cfg.Tier, tt.wantTier)
			}
			if cfg.ReasoningDepth != tt.wantDepth {
				t.Errorf("ReasoningDepth = %v, want %v", cfg.ReasoningDepth, tt.wantDepth)
			}
			if cfg.MediaFidelity != tt.wantFidelity {
				t.Errorf("MediaFidelity = %v, want %v", cfg.MediaFidelity, tt.wantFidelity)
			}
		})
	}
}

func TestSelectDeterministic(t *testing.T) {
	s := NewSelector(70, 3)

	first := s.Select(85, "", 1)
	for i := 0; i < 10; i++ {
		if got := s.Select(85, "", 1); got != first {
			t.Fatalf("Select not deterministic: call %d returned %+v, want %+v", i, got, first)
		}
	}
}

func TestNewSelectorDefaults(t *testing.T) {
	s := NewSelector(0, 0)
	if s.EscalationThreshold != DefaultEscalationThreshold {
		t.Errorf("EscalationThreshold = %d, want %d", s.EscalationThreshold, DefaultEscalationThreshold)
	}
	if s.PressureLimit != DefaultPressureLimit {
		t.Errorf("PressureLimit = %d, want %d", s.PressureLimit, DefaultPressureLimit)
	}
}
