package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/richinex/aegis/planner"
	"github.com/richinex/aegis/storage"
)

// recordingNotifier captures delivered alerts; fails on demand.
type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (n *recordingNotifier) Deliver(_ context.Context, alert Alert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func savedIncident(t *testing.T, store *storage.Store, evidencePath string) *storage.Incident {
	t.Helper()
	inc := &storage.Incident{
		Category:     "intrusion",
		Severity:     "high",
		Confidence:   92,
		Reasoning:    "forced entry",
		EvidencePath: evidencePath,
	}
	if err := store.SaveIncident(context.Background(), inc); err != nil {
		t.Fatalf("SaveIncident failed: %v", err)
	}
	return inc
}

func writeEvidence(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incident_1.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func planOf(steps ...planner.ActionStep) planner.ActionPlan {
	for i := range steps {
		steps[i].StepIndex = i + 1
		steps[i].Status = planner.StatusPending
	}
	return planner.ActionPlan{Steps: steps}
}

func TestExecuteAllStepsComplete(t *testing.T) {
	store := newTestStore(t)
	notifier := &recordingNotifier{}
	exec := New(store, notifier, nil, false)
	inc := savedIncident(t, store, writeEvidence(t))

	plan := planOf(
		planner.ActionStep{Action: planner.ActionSaveEvidence, Priority: planner.PriorityImmediate},
		planner.ActionStep{Action: planner.ActionSendAlert, Priority: planner.PriorityHigh},
		planner.ActionStep{Action: planner.ActionLogIncident, Priority: planner.PriorityMedium},
	)

	log := exec.Execute(context.Background(), plan, inc)

	if log.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", log.Outcome)
	}
	for _, step := range log.Steps {
		if step.Status != planner.StatusCompleted {
			t.Errorf("step %q status = %q, want completed", step.Action, step.Status)
		}
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("delivered %d alerts, want 1", len(notifier.alerts))
	}
	if notifier.alerts[0].Severity != "high" || notifier.alerts[0].IncidentID != inc.ID {
		t.Errorf("alert payload = %+v", notifier.alerts[0])
	}
}

func TestExecuteFailedStepDoesNotHaltPlan(t *testing.T) {
	store := newTestStore(t)
	notifier := &recordingNotifier{err: errors.New("smtp unreachable")}
	exec := New(store, notifier, nil, false)
	inc := savedIncident(t, store, "")

	plan := planOf(
		planner.ActionStep{Action: planner.ActionSendAlert, Priority: planner.PriorityImmediate},
		planner.ActionStep{Action: planner.ActionLogIncident, Priority: planner.PriorityMedium},
	)

	log := exec.Execute(context.Background(), plan, inc)

	if log.Outcome != OutcomePartiallyFailed {
		t.Errorf("Outcome = %q, want partially_failed", log.Outcome)
	}
	if log.Steps[0].Status != planner.StatusFailed {
		t.Errorf("alert step status = %q, want failed", log.Steps[0].Status)
	}
	if log.Steps[1].Status != planner.StatusCompleted {
		t.Errorf("later step status = %q, want completed despite earlier failure", log.Steps[1].Status)
	}
}

func TestExecuteWritesAuditRecords(t *testing.T) {
	store := newTestStore(t)
	exec := New(store, &recordingNotifier{}, nil, false)
	inc := savedIncident(t, store, "")

	plan := planOf(
		planner.ActionStep{Action: planner.ActionLogIncident, Priority: planner.PriorityMedium},
		planner.ActionStep{Action: planner.ActionMonitor, Priority: planner.PriorityHigh,
			Parameters: map[string]any{"duration": float64(120)}},
	)

	exec.Execute(context.Background(), plan, inc)

	records, err := store.ActionsForIncident(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("ActionsForIncident failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d audit records, want 2", len(records))
	}
	if records[0].Action != planner.ActionLogIncident || records[0].Status != string(planner.StatusCompleted) {
		t.Errorf("first audit record = %+v", records[0])
	}
}

func TestExecuteStatusTransitions(t *testing.T) {
	store := newTestStore(t)
	exec := New(store, &recordingNotifier{}, nil, false)
	inc := savedIncident(t, store, "")

	exec.Execute(context.Background(), planOf(
		planner.ActionStep{Action: planner.ActionEscalate, Priority: planner.PriorityImmediate},
	), inc)

	got, err := store.GetIncident(context.Background(), inc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != storage.StatusEscalated {
		t.Errorf("incident status = %q, want escalated", got.Status)
	}
}

func TestExecuteMissingEvidenceFailsStepOnly(t *testing.T) {
	store := newTestStore(t)
	exec := New(store, &recordingNotifier{}, nil, false)
	inc := savedIncident(t, store, "/nonexistent/evidence.jpg")

	log := exec.Execute(context.Background(), planOf(
		planner.ActionStep{Action: planner.ActionSaveEvidence, Priority: planner.PriorityImmediate},
		planner.ActionStep{Action: planner.ActionLogIncident, Priority: planner.PriorityMedium},
	), inc)

	if log.Outcome != OutcomePartiallyFailed {
		t.Errorf("Outcome = %q, want partially_failed", log.Outcome)
	}
	if log.Steps[1].Status != planner.StatusCompleted {
		t.Error("log_incident should complete after save_evidence failure")
	}
}

func TestExecuteSimulatedIoT(t *testing.T) {
	store := newTestStore(t)
	exec := New(store, &recordingNotifier{}, nil, false)
	inc := savedIncident(t, store, "")

	log := exec.Execute(context.Background(), planOf(
		planner.ActionStep{Action: planner.ActionLockDoor, Priority: planner.PriorityHigh},
		planner.ActionStep{Action: planner.ActionSoundAlarm, Priority: planner.PriorityHigh},
	), inc)

	if log.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", log.Outcome)
	}
	for i, result := range log.Results {
		if len(result) == 0 {
			t.Errorf("step %d has empty result text", i)
		}
	}
}

func TestExecuteDoesNotMutateInputPlan(t *testing.T) {
	store := newTestStore(t)
	exec := New(store, &recordingNotifier{}, nil, false)
	inc := savedIncident(t, store, "")

	plan := planOf(planner.ActionStep{Action: planner.ActionLogIncident, Priority: planner.PriorityMedium})
	exec.Execute(context.Background(), plan, inc)

	if plan.Steps[0].Status != planner.StatusPending {
		t.Errorf("input plan mutated: step status = %q", plan.Steps[0].Status)
	}
}
