package runtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slamonitor_backend/platform/apperr"
	"slamonitor_backend/platform/logger"
)

type memoryStore struct {
	runs  map[uuid.UUID]Run
	steps []Step
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[uuid.UUID]Run{}}
}

func (s *memoryStore) InsertRun(_ context.Context, run Run) error {
	s.runs[run.ID] = run
	return nil
}

func (s *memoryStore) FinishRun(_ context.Context, run Run) error {
	if _, ok := s.runs[run.ID]; !ok {
		return errors.New("run not found")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *memoryStore) InsertStep(_ context.Context, step Step) error {
	s.steps = append(s.steps, step)
	return nil
}

func TestTrackerRunLifecycle(t *testing.T) {
	store := newMemoryStore()
	tracker := NewTracker(store, logger.New("development"))

	runID, err := tracker.StartRun(context.Background(), "interval", map[string]any{"ai_enabled": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracker.ActiveRunID() != runID {
		t.Fatal("expected the started run to be active")
	}
	if store.runs[runID].Status != RunRunning {
		t.Fatalf("expected running status, got %s", store.runs[runID].Status)
	}

	if err := tracker.CompleteRun(context.Background(), 42, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final := store.runs[runID]
	if final.Status != RunCompleted || final.OpportunitiesProcessed != 42 || final.NotificationsSent != 3 {
		t.Fatalf("unexpected final run %+v", final)
	}
	if final.EndedAt == nil {
		t.Fatal("expected ended timestamp")
	}
	if tracker.ActiveRunID() != uuid.Nil {
		t.Fatal("expected no active run after completion")
	}
}

func TestTrackerRejectsSecondActiveRun(t *testing.T) {
	tracker := NewTracker(newMemoryStore(), logger.New("development"))

	if _, err := tracker.StartRun(context.Background(), "interval", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := tracker.StartRun(context.Background(), "manual", nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordStepWithoutActiveRunIsAnInvariantViolation(t *testing.T) {
	tracker := NewTracker(newMemoryStore(), logger.New("development"))

	err := tracker.RecordStep(context.Background(), Step{Name: "fetch"})
	if !apperr.Is(err, apperr.KindInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestTrackStepRecordsTimingAndError(t *testing.T) {
	store := newMemoryStore()
	tracker := NewTracker(store, logger.New("development"))

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	calls := 0
	tracker.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 100 * time.Millisecond)
	}

	if _, err := tracker.StartRun(context.Background(), "interval", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stepErr := errors.New("source unreachable")
	err := tracker.TrackStep(context.Background(), "fetch", map[string]any{"force_refresh": false}, func(_ context.Context) (map[string]any, error) {
		return nil, stepErr
	})
	if !errors.Is(err, stepErr) {
		t.Fatalf("expected the step error returned unchanged, got %v", err)
	}

	if len(store.steps) != 1 {
		t.Fatalf("expected 1 recorded step, got %d", len(store.steps))
	}
	step := store.steps[0]
	if step.Name != "fetch" || step.DurationMS != 100 {
		t.Fatalf("unexpected step %+v", step)
	}
	if step.Error == nil || *step.Error != "source unreachable" {
		t.Fatalf("expected step error recorded, got %v", step.Error)
	}
}

func TestCompleteRunWithErrorsIsMarkedFailed(t *testing.T) {
	store := newMemoryStore()
	tracker := NewTracker(store, logger.New("development"))

	runID, _ := tracker.StartRun(context.Background(), "interval", nil)
	tracker.AddError(context.Background(), "reminder GD0001: webhook returned 502")
	if err := tracker.CompleteRun(context.Background(), 5, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := store.runs[runID]
	if run.Status != RunFailed {
		t.Fatalf("expected a run with errors marked failed, got %s", run.Status)
	}
	if run.OpportunitiesProcessed != 5 || run.NotificationsSent != 2 {
		t.Fatalf("expected partial counts kept, got %+v", run)
	}
	if len(run.Errors) != 1 || run.Errors[0] != "reminder GD0001: webhook returned 502" {
		t.Fatalf("expected the accumulated error kept, got %v", run.Errors)
	}
}

func TestFailRunRecordsCause(t *testing.T) {
	store := newMemoryStore()
	tracker := NewTracker(store, logger.New("development"))

	runID, _ := tracker.StartRun(context.Background(), "interval", nil)
	tracker.AddError(context.Background(), "decide GD0001: timeout")
	if err := tracker.FailRun(context.Background(), errors.New("fetch failed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := store.runs[runID]
	if run.Status != RunFailed {
		t.Fatalf("expected failed status, got %s", run.Status)
	}
	if len(run.Errors) != 2 {
		t.Fatalf("expected accumulated and terminal errors, got %v", run.Errors)
	}
}
