package runtrack

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"slamonitor_backend/platform/apperr"
	"slamonitor_backend/platform/logger"
)

// Store is the persistence surface the tracker writes through.
// *Repository satisfies it.
type Store interface {
	InsertRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	InsertStep(ctx context.Context, step Step) error
}

// Tracker records the lifecycle of a single monitor run. A persistence
// failure never fails the run itself; it is logged and the in-memory state
// carries on.
type Tracker struct {
	store Store
	log   *logger.Logger

	mu     sync.Mutex
	active *Run
	now    func() time.Time
}

func NewTracker(store Store, log *logger.Logger) *Tracker {
	return &Tracker{store: store, log: log, now: time.Now}
}

// StartRun opens a new run. Only one run may be active per tracker.
func (t *Tracker) StartRun(ctx context.Context, trigger string, runContext map[string]any) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		return uuid.Nil, apperr.Conflict("a monitor run is already active")
	}

	run := Run{
		ID:        uuid.New(),
		Status:    RunRunning,
		Trigger:   trigger,
		StartedAt: t.now(),
		Context:   runContext,
	}
	if err := t.store.InsertRun(ctx, run); err != nil {
		t.log.DatabaseError("insert monitor run", err)
	}
	t.active = &run
	return run.ID, nil
}

// RecordStep persists one finished step of the active run.
func (t *Tracker) RecordStep(ctx context.Context, step Step) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return apperr.Invariant("no active monitor run")
	}
	step.ID = uuid.New()
	step.RunID = t.active.ID
	if err := t.store.InsertStep(ctx, step); err != nil {
		t.log.DatabaseError("insert run step", err)
	}
	return nil
}

// TrackStep times fn and records it as a step. The step's error field is
// set from fn's error, which is also returned unchanged.
func (t *Tracker) TrackStep(ctx context.Context, name string, input map[string]any, fn func(ctx context.Context) (map[string]any, error)) error {
	started := t.now()
	output, err := fn(ctx)
	ended := t.now()

	step := Step{
		Name:       name,
		StartedAt:  started,
		EndedAt:    ended,
		DurationMS: ended.Sub(started).Milliseconds(),
		Input:      input,
		Output:     output,
	}
	if err != nil {
		msg := err.Error()
		step.Error = &msg
	}
	if recErr := t.RecordStep(ctx, step); recErr != nil {
		return recErr
	}
	return err
}

// AddError appends a non-fatal error to the active run.
func (t *Tracker) AddError(ctx context.Context, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return
	}
	t.active.Errors = append(t.active.Errors, msg)
}

// CompleteRun closes the active run with final counters. A run that
// accumulated errors is closed as failed; the counters are kept either way,
// so a partial pass is auditable without being reported as clean.
func (t *Tracker) CompleteRun(ctx context.Context, opportunities, notifications int) error {
	return t.finish(ctx, RunCompleted, opportunities, notifications, "")
}

// FailRun closes the active run as failed.
func (t *Tracker) FailRun(ctx context.Context, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.finish(ctx, RunFailed, 0, 0, msg)
}

func (t *Tracker) finish(ctx context.Context, status RunStatus, opportunities, notifications int, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return apperr.Invariant("no active monitor run")
	}

	run := *t.active
	ended := t.now()
	if status == RunCompleted && len(run.Errors) > 0 {
		status = RunFailed
	}
	run.Status = status
	run.EndedAt = &ended
	run.OpportunitiesProcessed = opportunities
	run.NotificationsSent = notifications
	if errMsg != "" {
		run.Errors = append(run.Errors, errMsg)
	}
	if err := t.store.FinishRun(ctx, run); err != nil {
		t.log.DatabaseError("finish monitor run", err)
	}
	t.active = nil
	return nil
}

// ActiveRunID returns the current run's ID, or uuid.Nil when idle.
func (t *Tracker) ActiveRunID() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return uuid.Nil
	}
	return t.active.ID
}
