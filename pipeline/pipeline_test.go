package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/richinex/aegis/analysis"
	"github.com/richinex/aegis/llm"
	"github.com/richinex/aegis/metrics"
	"github.com/richinex/aegis/planner"
	"github.com/richinex/aegis/storage"
)

// fakeProvider replays canned responses and records every request.
type fakeProvider struct {
	mu        sync.Mutex
	responses []llm.Response
	errs      []error
	requests  []llm.Request
}

func (f *fakeProvider) Name() string             { return "fake" }
func (f *fakeProvider) ModelFor(llm.Tier) string { return "fake-model" }

func (f *fakeProvider) Analyze(_ context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	i := len(f.requests) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return llm.Response{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return llm.Response{Content: `{"incident": false, "type": "normal", "severity": "low", "confidence": 10, "reasoning": "quiet", "subjects": [], "recommended_actions": []}`}, nil
}

func (f *fakeProvider) request(i int) llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func newTestPipeline(t *testing.T, provider *fakeProvider) (*Pipeline, *storage.Store) {
	t.Helper()
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	p := New(Config{
		Provider:    provider,
		Store:       store,
		Tracker:     metrics.NewTracker(),
		EvidenceDir: t.TempDir(),
	})
	return p, store
}

func TestProcessFrameNormalClampsConfidence(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: `{"incident": false, "type": "normal", "severity": "low", "confidence": 150, "reasoning": "ok", "subjects": [], "recommended_actions": []}`},
	}}
	p, _ := newTestPipeline(t, provider)

	result, err := p.ProcessFrame(context.Background(), Frame{Number: 1, Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	if result.Analysis.Confidence != 100 {
		t.Errorf("Confidence = %d, want clamped to 100", result.Analysis.Confidence)
	}
	if result.Analysis.Incident {
		t.Error("incident = true, want false")
	}
	if result.Plan != nil {
		t.Error("no plan should be generated for a non-incident frame")
	}
}

func TestProcessFrameIncidentEmptyPlanFallsBack(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: `{"incident": true, "type": "violence", "severity": "critical", "confidence": 95, "reasoning": "weapon visible", "subjects": ["armed adult"], "recommended_actions": ["contact_authorities"]}`},
		{Content: `[]`}, // planning call returns an empty array
	}}
	p, store := newTestPipeline(t, provider)

	result, err := p.ProcessFrame(context.Background(), Frame{Number: 2, Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	if result.Plan == nil || !result.Plan.Fallback {
		t.Fatal("empty planner output must produce the fallback plan")
	}
	if len(result.Plan.Steps) != 8 {
		t.Errorf("critical fallback has %d steps, want 8", len(result.Plan.Steps))
	}
	first := result.Plan.Steps[0]
	if first.Action != planner.ActionSaveEvidence || first.Priority != planner.PriorityImmediate {
		t.Errorf("first step = %q/%q, want save_evidence/immediate", first.Action, first.Priority)
	}
	if result.Execution == nil {
		t.Fatal("incident must be executed")
	}

	saved, err := store.GetIncident(context.Background(), result.IncidentID)
	if err != nil {
		t.Fatalf("incident not persisted: %v", err)
	}
	if saved.Severity != "critical" {
		t.Errorf("persisted severity = %q, want critical", saved.Severity)
	}
}

func TestProcessFrameInvalidActionRewritten(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: `{"incident": true, "type": "intrusion", "severity": "high", "confidence": 90, "reasoning": "forced entry", "subjects": [], "recommended_actions": []}`},
		{Content: `[
			{"step": 1, "action": "save_evidence", "priority": "immediate", "parameters": {}, "reasoning": "keep the frame"},
			{"step": 2, "action": "launch_drone", "priority": "high", "parameters": {}, "reasoning": "aerial pursuit"}
		]`},
	}}
	p, _ := newTestPipeline(t, provider)

	result, err := p.ProcessFrame(context.Background(), Frame{Number: 3, Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if result.Plan == nil {
		t.Fatal("expected a plan")
	}

	var rewritten *planner.ActionStep
	for i := range result.Plan.Steps {
		if result.Plan.Steps[i].Rationale == "aerial pursuit" {
			rewritten = &result.Plan.Steps[i]
		}
	}
	if rewritten == nil {
		t.Fatal("invalid step was dropped instead of rewritten")
	}
	if rewritten.Action != planner.ActionLogIncident {
		t.Errorf("rewritten action = %q, want log_incident", rewritten.Action)
	}
}

func TestProcessFrameContinuationTokenFlow(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{
			Content:      `{"incident": false, "type": "normal", "severity": "low", "confidence": 20, "reasoning": "watching", "subjects": [], "recommended_actions": []}`,
			Continuation: "sig-1",
		},
		{
			Content:      `{"incident": false, "type": "normal", "severity": "low", "confidence": 20, "reasoning": "still watching", "subjects": [], "recommended_actions": []}`,
			Continuation: "sig-2",
		},
	}}
	p, _ := newTestPipeline(t, provider)
	ctx := context.Background()

	if _, err := p.ProcessFrame(ctx, Frame{Number: 1, Image: []byte("a"), InvestigationID: "inc-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ProcessFrame(ctx, Frame{Number: 2, Image: []byte("b"), InvestigationID: "inc-1"}); err != nil {
		t.Fatal(err)
	}

	if got := provider.request(0).Continuation; got != "" {
		t.Errorf("first request continuation = %q, want empty", got)
	}
	if got := provider.request(1).Continuation; got != "sig-1" {
		t.Errorf("second request continuation = %q, want the token from the first response", got)
	}

	// After both frames the store holds the latest token.
	token, ok := p.states.Get("inc-1")
	if !ok || token != "sig-2" {
		t.Errorf("stored token = %q, want sig-2", token)
	}
}

func TestProcessFrameInvestigationGetsDeepConfig(t *testing.T) {
	provider := &fakeProvider{}
	p, _ := newTestPipeline(t, provider)

	if _, err := p.ProcessFrame(context.Background(), Frame{Number: 1, Image: []byte("a"), InvestigationID: "inc-9"}); err != nil {
		t.Fatal(err)
	}

	cfg := provider.request(0).Config
	if cfg.Tier != llm.TierDeep || cfg.ReasoningDepth != llm.DepthHigh || cfg.MediaFidelity != llm.FidelityHigh {
		t.Errorf("investigation frame config = %+v, want deep/high/high", cfg)
	}
}

func TestProcessFrameNetworkFailure(t *testing.T) {
	provider := &fakeProvider{errs: []error{errors.New("connection refused")}}
	p, _ := newTestPipeline(t, provider)

	result, err := p.ProcessFrame(context.Background(), Frame{Number: 1, Image: []byte("a")})
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Fatalf("err = %v, want ErrAnalysisUnavailable", err)
	}
	if !result.Unavailable {
		t.Error("result should be marked unavailable")
	}
	if p.window.Len() != 0 {
		t.Error("failed analysis must not be recorded in the context window")
	}

	// The next frame proceeds normally.
	if _, err := p.ProcessFrame(context.Background(), Frame{Number: 2, Image: []byte("b")}); err != nil {
		t.Errorf("subsequent frame failed: %v", err)
	}
}

func TestProcessFrameParseFailureRecovered(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: "everything looks calm, no json here"},
	}}
	p, _ := newTestPipeline(t, provider)

	result, err := p.ProcessFrame(context.Background(), Frame{Number: 1, Image: []byte("a")})
	if err != nil {
		t.Fatalf("parse failure must be recovered, got error: %v", err)
	}
	if result.Analysis.Incident {
		t.Error("safe default must not be an incident")
	}
	if result.Analysis.Confidence != 0 {
		t.Errorf("safe default confidence = %d, want 0", result.Analysis.Confidence)
	}
}

func TestProcessFrameCarriesTemporalContext(t *testing.T) {
	provider := &fakeProvider{}
	p, _ := newTestPipeline(t, provider)
	ctx := context.Background()

	if _, err := p.ProcessFrame(ctx, Frame{Number: 1, Image: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ProcessFrame(ctx, Frame{Number: 2, Image: []byte("b")}); err != nil {
		t.Fatal(err)
	}

	if got := provider.request(0).Context; got != "" {
		t.Errorf("first frame context = %q, want empty", got)
	}
	want := "Frame 1: normal (low, 10% conf)"
	if got := provider.request(1).Context; got != want {
		t.Errorf("second frame context = %q, want %q", got, want)
	}
}

func TestProcessFrameRiskEscalation(t *testing.T) {
	incidentJSON := `{"incident": true, "type": "intrusion", "severity": "high", "confidence": 90, "reasoning": "entry", "subjects": [], "recommended_actions": []}`
	planJSON := `[{"step": 1, "action": "save_evidence", "priority": "immediate", "parameters": {}, "reasoning": "keep"}]`

	// Frame 1: analysis then planning. Frame 2 falls through to the default
	// normal response.
	provider := &fakeProvider{responses: []llm.Response{
		{Content: incidentJSON},
		{Content: planJSON},
	}}
	p, _ := newTestPipeline(t, provider)
	ctx := context.Background()

	if _, err := p.ProcessFrame(ctx, Frame{Number: 1, Image: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ProcessFrame(ctx, Frame{Number: 2, Image: []byte("b")}); err != nil {
		t.Fatal(err)
	}

	// Risk carried from the incident (confidence 90 > threshold 70) escalates
	// the next frame to the deep tier.
	cfg := provider.request(2).Config
	if cfg.Tier != llm.TierDeep {
		t.Errorf("post-incident frame tier = %v, want deep", cfg.Tier)
	}
}

func TestCloseInvestigation(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: `{"incident": false, "type": "normal", "severity": "low", "confidence": 10, "reasoning": "ok", "subjects": [], "recommended_actions": []}`, Continuation: "sig-1"},
	}}
	p, _ := newTestPipeline(t, provider)

	if _, err := p.ProcessFrame(context.Background(), Frame{Number: 1, Image: []byte("a"), InvestigationID: "inc-1"}); err != nil {
		t.Fatal(err)
	}
	p.CloseInvestigation("inc-1")

	if _, ok := p.states.Get("inc-1"); ok {
		t.Error("continuation token should be dropped when the investigation closes")
	}
}

func TestDefaultAnalysisNeverIncident(t *testing.T) {
	a := analysis.DefaultAnalysis(1, "timeout")
	if a.Incident || a.Confidence != 0 {
		t.Errorf("unexpected default analysis: %+v", a)
	}
}

func TestProcessFrameCancelledContextDiscardsResult(t *testing.T) {
	provider := &fakeProvider{}
	p, _ := newTestPipeline(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessFrame(ctx, Frame{Number: 1, Image: []byte("a")})
	if err == nil {
		t.Error("cancelled pipeline should not return a result")
	}
	if p.window.Len() != 0 {
		t.Error("cancelled frame must not be recorded in the context window")
	}
}
