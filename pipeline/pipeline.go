// Package pipeline orchestrates frame processing end to end: configuration
// selection, the analysis call, normalization, and on confirmed incidents the
// planning call, plan execution, and persistence.
//
// Concurrency model: each frame is one task. Frames sharing an investigation
// id are serialized in submission order by a per-id mutex; the context window
// and reasoning-state store are internally synchronized. Everything else is
// stateless per call.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/richinex/aegis/analysis"
	"github.com/richinex/aegis/executor"
	"github.com/richinex/aegis/llm"
	"github.com/richinex/aegis/metrics"
	"github.com/richinex/aegis/planner"
	"github.com/richinex/aegis/policy"
	"github.com/richinex/aegis/state"
	"github.com/richinex/aegis/storage"
)

// ErrAnalysisUnavailable marks frames whose analysis call failed at the
// transport level. The frame is skipped; the next frame proceeds normally.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// DefaultPressureWindow is the trailing window for incident pressure.
const DefaultPressureWindow = 10 * time.Minute

// Frame is one unit of work: raw image bytes plus an optional investigation
// id correlating it with an ongoing security event.
type Frame struct {
	Number          int
	Image           []byte
	MimeType        string
	InvestigationID string
}

// FrameResult is what one processed frame yields.
type FrameResult struct {
	Analysis   analysis.FrameAnalysis `json:"analysis"`
	IncidentID string                 `json:"incident_id,omitempty"`
	Plan       *planner.ActionPlan    `json:"plan,omitempty"`
	Execution  *executor.ExecutionLog `json:"execution,omitempty"`
	// Unavailable is set when the analysis call itself failed; no analysis
	// was recorded for this frame.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Config wires a pipeline. Zero-value fields get working defaults.
type Config struct {
	Provider       llm.Provider
	Timeout        time.Duration
	Selector       *policy.Selector
	Normalizer     *analysis.Normalizer
	Window         *analysis.Window
	States         *state.Store
	Store          *storage.Store
	Notifier       executor.Notifier
	Tracker        *metrics.Tracker
	Logger         *slog.Logger
	EvidenceDir    string
	PressureWindow time.Duration
	IoTEnabled     bool
}

// Pipeline processes frames.
type Pipeline struct {
	client     *llm.Client
	provider   llm.Provider
	selector   *policy.Selector
	normalizer *analysis.Normalizer
	window     *analysis.Window
	states     *state.Store
	store      *storage.Store
	planner    *planner.Planner
	executor   *executor.Executor
	tracker    *metrics.Tracker
	logger     *slog.Logger

	evidenceDir      string
	pressureWindow   time.Duration
	perInvestigation *keyedMutex

	mu            sync.Mutex
	riskEstimate  int
	incidentTimes []time.Time
}

// New assembles a pipeline from its parts.
func New(cfg Config) *Pipeline {
	if cfg.Selector == nil {
		cfg.Selector = policy.NewSelector(0, 0)
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = analysis.NewNormalizer(0)
	}
	if cfg.Window == nil {
		cfg.Window = analysis.NewWindow(0, 0)
	}
	if cfg.States == nil {
		cfg.States = state.NewStore()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = metrics.NewTracker()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PressureWindow <= 0 {
		cfg.PressureWindow = DefaultPressureWindow
	}

	p := &Pipeline{
		client:           llm.NewClient(cfg.Provider, cfg.Timeout),
		provider:         cfg.Provider,
		selector:         cfg.Selector,
		normalizer:       cfg.Normalizer,
		window:           cfg.Window,
		states:           cfg.States,
		store:            cfg.Store,
		tracker:          cfg.Tracker,
		logger:           cfg.Logger,
		evidenceDir:      cfg.EvidenceDir,
		pressureWindow:   cfg.PressureWindow,
		perInvestigation: newKeyedMutex(),
	}
	p.planner = planner.New(&instrumentedInferencer{p: p}, cfg.Logger)
	p.executor = executor.New(cfg.Store, cfg.Notifier, cfg.Logger, cfg.IoTEnabled)
	return p
}

// ProcessFrame runs one frame through the full pipeline. Transport failures
// return ErrAnalysisUnavailable; every other failure mode is recovered
// internally and yields a well-formed result.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) (FrameResult, error) {
	if frame.InvestigationID != "" {
		unlock := p.perInvestigation.Lock(frame.InvestigationID)
		defer unlock()
	}

	a, continuation, err := p.analyzeFrame(ctx, frame)
	if err != nil {
		return FrameResult{Unavailable: true}, err
	}

	// A cancelled pipeline discards its result between suspension points.
	if ctx.Err() != nil {
		return FrameResult{Unavailable: true}, ctx.Err()
	}

	p.window.Append(a, frame.InvestigationID)
	if frame.InvestigationID != "" && continuation != "" {
		p.states.Put(frame.InvestigationID, continuation)
	}
	p.updateRisk(a)

	result := FrameResult{Analysis: a}
	if !a.Incident {
		return result, nil
	}

	p.tracker.ObserveIncident(a.Severity.String(), a.Category)
	if frame.InvestigationID != "" {
		p.window.MarkOpen(frame.InvestigationID)
	}

	evidencePath := p.writeEvidence(frame)
	incident := p.buildIncident(a, evidencePath)

	plan := p.planner.Plan(ctx, a)
	if planJSON, err := json.Marshal(plan); err == nil {
		incident.ResponsePlan = string(planJSON)
	}

	if p.store != nil {
		if err := p.store.SaveIncident(ctx, incident); err != nil {
			p.logger.Error("failed to persist incident", "error", err)
		}
	}
	result.IncidentID = incident.ID

	execLog := p.executor.Execute(ctx, plan, incident)
	result.Plan = &plan
	result.Execution = &execLog

	p.logger.Info("incident handled",
		"incident_id", incident.ID,
		"category", a.Category,
		"severity", a.Severity.String(),
		"confidence", a.Confidence,
		"plan_steps", len(plan.Steps),
		"fallback_plan", plan.Fallback,
		"outcome", string(execLog.Outcome))

	return result, nil
}

// analyzeFrame performs the analysis inference call and normalization.
func (p *Pipeline) analyzeFrame(ctx context.Context, frame Frame) (analysis.FrameAnalysis, string, error) {
	risk, pressure := p.currentSignals()
	cfg := p.selector.Select(risk, frame.InvestigationID, pressure)

	req := llm.Request{
		System:     visionSystemPrompt,
		Prompt:     visionUserPrompt,
		Context:    p.window.Serialize(),
		Image:      frame.Image,
		MimeType:   frame.MimeType,
		Config:     cfg,
		JSONOutput: true,
	}
	if frame.InvestigationID != "" {
		if token, ok := p.states.Get(frame.InvestigationID); ok {
			req.Continuation = token
		}
	}

	start := time.Now()
	resp, err := p.client.Analyze(ctx, req)
	elapsed := time.Since(start)

	model := p.provider.ModelFor(cfg.Tier)
	if err != nil {
		p.tracker.ObserveCall(metrics.CallAnalysis, p.provider.Name(), model, cfg.Tier,
			metrics.OutcomeNetFailure, elapsed, nil)
		p.logger.Error("analysis call failed", "frame", frame.Number, "error", err)
		return analysis.FrameAnalysis{}, "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	a, nerr := p.normalizer.Normalize(frame.Number, resp.Content)
	if nerr != nil {
		p.tracker.ObserveCall(metrics.CallAnalysis, p.provider.Name(), model, cfg.Tier,
			metrics.OutcomeParseFailure, elapsed, resp.Usage)
		p.logger.Warn("unparseable analysis response, using safe default",
			"frame", frame.Number, "error", nerr)
		return analysis.DefaultAnalysis(frame.Number, "JSON parsing failed"), resp.Continuation, nil
	}

	p.tracker.ObserveCall(metrics.CallAnalysis, p.provider.Name(), model, cfg.Tier,
		metrics.OutcomeOK, elapsed, resp.Usage)
	return a, resp.Continuation, nil
}

// currentSignals returns the carried risk estimate and the trailing-window
// incident pressure.
func (p *Pipeline) currentSignals() (risk, pressure int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-p.pressureWindow)
	kept := p.incidentTimes[:0]
	for _, t := range p.incidentTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.incidentTimes = kept

	return p.riskEstimate, len(p.incidentTimes)
}

// updateRisk carries risk forward: an incident sets it to the analysis
// confidence, a calm frame decays it by half.
func (p *Pipeline) updateRisk(a analysis.FrameAnalysis) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if a.Incident {
		p.riskEstimate = a.Confidence
		p.incidentTimes = append(p.incidentTimes, time.Now())
	} else {
		p.riskEstimate /= 2
	}
}

// writeEvidence persists the raw frame bytes. A failed write is logged and
// leaves the path empty; evidence handling continues in the plan.
func (p *Pipeline) writeEvidence(frame Frame) string {
	if p.evidenceDir == "" || len(frame.Image) == 0 {
		return ""
	}
	if err := os.MkdirAll(p.evidenceDir, 0755); err != nil {
		p.logger.Error("failed to create evidence directory", "error", err)
		return ""
	}
	name := fmt.Sprintf("incident_%d_%d.jpg", frame.Number, time.Now().Unix())
	path := filepath.Join(p.evidenceDir, name)
	if err := os.WriteFile(path, frame.Image, 0644); err != nil {
		p.logger.Error("failed to write evidence file", "path", path, "error", err)
		return ""
	}
	return path
}

func (p *Pipeline) buildIncident(a analysis.FrameAnalysis, evidencePath string) *storage.Incident {
	return &storage.Incident{
		Timestamp:          a.Timestamp,
		Category:           a.Category,
		Severity:           a.Severity.String(),
		Confidence:         a.Confidence,
		Reasoning:          a.Reasoning,
		Subjects:           a.Subjects,
		RecommendedActions: a.RecommendedActions,
		EvidencePath:       evidencePath,
		Status:             storage.StatusActive,
	}
}

// CloseInvestigation resolves an investigation: its context entries become
// evictable and its continuation token is dropped.
func (p *Pipeline) CloseInvestigation(investigationID string) {
	p.window.MarkClosed(investigationID)
	p.states.Clear(investigationID)
}

// instrumentedInferencer routes planning calls through the client and
// records their metrics.
type instrumentedInferencer struct {
	p *Pipeline
}

func (i *instrumentedInferencer) Analyze(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	resp, err := i.p.client.Analyze(ctx, req)
	elapsed := time.Since(start)

	model := i.p.provider.ModelFor(req.Config.Tier)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeNetFailure
	}
	i.p.tracker.ObserveCall(metrics.CallPlanning, i.p.provider.Name(), model, req.Config.Tier,
		outcome, elapsed, resp.Usage)
	return resp, err
}
