// Package orchestrator drives one monitor pass end to end: fetch, assess,
// decide, dispatch, finalize.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"slamonitor_backend/internal/decision"
	"slamonitor_backend/internal/notification"
	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/settings"
	"slamonitor_backend/internal/sla"
	"slamonitor_backend/platform/apperr"
	"slamonitor_backend/platform/logger"
)

type SettingsSource interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

type DataSource interface {
	GetOpportunities(ctx context.Context, forceRefresh bool) ([]opportunity.Opportunity, error)
}

type Decider interface {
	Decide(ctx context.Context, in decision.Input) decision.Result
}

// History exposes past notification activity for decision context.
type History interface {
	LastSentAt(ctx context.Context, orderNo string, typ notification.Type) (*time.Time, error)
	RecentHistory(ctx context.Context, orderNo string, since time.Time) ([]notification.Task, error)
}

type Notifier interface {
	CreateTasks(ctx context.Context, opps []opportunity.Opportunity, decisions map[string]decision.Result, runID uuid.UUID, p notification.Params) []notification.Task
	ExecutePending(ctx context.Context, p notification.Params) notification.Result
	CleanupOld(ctx context.Context, retentionDays int) (int64, error)
}

// ChannelDirectory answers whether an organization has a chat channel.
type ChannelDirectory interface {
	Configured(organization string) bool
}

// Tracker records the run lifecycle.
type Tracker interface {
	StartRun(ctx context.Context, trigger string, runContext map[string]any) (uuid.UUID, error)
	TrackStep(ctx context.Context, name string, input map[string]any, fn func(ctx context.Context) (map[string]any, error)) error
	AddError(ctx context.Context, msg string)
	CompleteRun(ctx context.Context, opportunities, notifications int) error
	FailRun(ctx context.Context, cause error) error
}

// Summary is the outcome of one pass.
type Summary struct {
	RunID         uuid.UUID           `json:"run_id"`
	Trigger       string              `json:"trigger"`
	Opportunities int                 `json:"opportunities"`
	Violations    int                 `json:"violations"`
	Overdue       int                 `json:"overdue"`
	Notifications notification.Result `json:"notifications"`
	Duration      time.Duration       `json:"duration"`
}

// Orchestrator runs the monitor pipeline. At most one pass runs at a time;
// overlapping triggers are rejected with a conflict.
type Orchestrator struct {
	settings SettingsSource
	data     DataSource
	engine   Decider
	history  History
	notifier Notifier
	channels ChannelDirectory
	tracker  Tracker
	log      *logger.Logger

	mu       sync.Mutex
	running  bool
	snapshot []opportunity.Opportunity
	now      func() time.Time
}

func New(settingsSource SettingsSource, data DataSource, engine Decider, history History, channels ChannelDirectory, tracker Tracker, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		settings: settingsSource,
		data:     data,
		engine:   engine,
		history:  history,
		channels: channels,
		tracker:  tracker,
		log:      log,
		now:      time.Now,
	}
}

// SetNotifier wires the notification manager. Set after construction because
// the manager needs the orchestrator as its escalation source.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// EscalatingForOrganization returns the orders past their escalation
// threshold for one organization, from the most recent assessed snapshot.
func (o *Orchestrator) EscalatingForOrganization(_ context.Context, organization string) ([]opportunity.Opportunity, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []opportunity.Opportunity
	for _, opp := range o.snapshot {
		if opp.Organization == organization && opp.EscalationLevel > 0 {
			out = append(out, opp)
		}
	}
	return out, nil
}

// LastSnapshot returns the most recent assessed snapshot.
func (o *Orchestrator) LastSnapshot() []opportunity.Opportunity {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]opportunity.Opportunity, len(o.snapshot))
	copy(out, o.snapshot)
	return out
}

func (o *Orchestrator) markRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) markComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

func (o *Orchestrator) setSnapshot(opps []opportunity.Opportunity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = opps
}

// RunOnce executes a full monitor pass. Settings are loaded fresh at the
// start so operator changes apply on the next pass without a restart.
// Per-opportunity failures are recorded on the run and skipped; only a
// failure to obtain any data fails the pass.
func (o *Orchestrator) RunOnce(ctx context.Context, trigger string, forceRefresh bool) (Summary, error) {
	if !o.markRunning() {
		return Summary{}, apperr.Conflict("a monitor run is already in progress")
	}
	defer o.markComplete()

	started := o.now()
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load settings snapshot: %w", err)
	}

	runID, err := o.tracker.StartRun(ctx, trigger, map[string]any{
		"ai_enabled":    snap.Settings.AIEnabled,
		"cache_enabled": snap.Settings.CacheEnabled,
		"force_refresh": forceRefresh,
	})
	if err != nil {
		return Summary{}, err
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, runID.String())
	ctx = context.WithValue(ctx, logger.TriggerKey, trigger)
	log := o.log.WithContext(ctx)
	log.RunEvent("started", runID.String(), 0, 0)

	summary := Summary{RunID: runID, Trigger: trigger}
	// With caching switched off every pass hits the source directly.
	forceRefresh = forceRefresh || !snap.Settings.CacheEnabled

	var assessed []opportunity.Opportunity
	err = o.tracker.TrackStep(ctx, "fetch", map[string]any{"force_refresh": forceRefresh}, func(ctx context.Context) (map[string]any, error) {
		raw, err := o.data.GetOpportunities(ctx, forceRefresh)
		if err != nil {
			return nil, err
		}
		assessed = sla.Annotate(raw, o.now(), snap.SLA)
		o.setSnapshot(assessed)
		stats := opportunity.ComputeStats(assessed)
		summary.Opportunities = stats.Total
		summary.Violations = stats.Violations
		summary.Overdue = stats.Overdue
		return map[string]any{"total": stats.Total, "violations": stats.Violations, "overdue": stats.Overdue}, nil
	})
	if err != nil {
		_ = o.tracker.FailRun(ctx, err)
		log.RunEvent("failed", runID.String(), 0, 0)
		return summary, err
	}

	decisions := map[string]decision.Result{}
	_ = o.tracker.TrackStep(ctx, "decide", nil, func(ctx context.Context) (map[string]any, error) {
		decisions = o.decideAll(ctx, assessed, snap)
		return map[string]any{"decided": len(decisions)}, nil
	})

	_ = o.tracker.TrackStep(ctx, "dispatch", nil, func(ctx context.Context) (map[string]any, error) {
		params := notification.Params{
			Cooldown:   snap.Settings.Cooldown(),
			MaxRetries: snap.Settings.MaxRetries,
		}
		created := o.notifier.CreateTasks(ctx, assessed, decisions, runID, params)
		summary.Notifications = o.notifier.ExecutePending(ctx, params)
		for _, e := range summary.Notifications.Errors {
			o.tracker.AddError(ctx, e)
		}
		return map[string]any{
			"created": len(created),
			"sent":    summary.Notifications.Sent,
			"failed":  summary.Notifications.Failed,
		}, nil
	})

	_ = o.tracker.TrackStep(ctx, "finalize", nil, func(ctx context.Context) (map[string]any, error) {
		deleted, err := o.notifier.CleanupOld(ctx, snap.Settings.RetentionDays)
		if err != nil {
			log.DatabaseError("cleanup old tasks", err)
			return nil, err
		}
		return map[string]any{"deleted_tasks": deleted}, nil
	})

	if err := o.tracker.CompleteRun(ctx, summary.Opportunities, summary.Notifications.Sent); err != nil {
		log.DatabaseError("complete monitor run", err)
	}
	summary.Duration = o.now().Sub(started)
	// A run that accumulated errors is persisted as failed with its partial
	// counts; the log event mirrors that status.
	outcome := "completed"
	if len(summary.Notifications.Errors) > 0 {
		outcome = "failed"
	}
	log.RunEvent(outcome, runID.String(), summary.Opportunities, summary.Notifications.Sent)
	return summary, nil
}

// decideAll evaluates every violating opportunity. Non-violating orders are
// skipped without an engine call since no notification could result.
func (o *Orchestrator) decideAll(ctx context.Context, opps []opportunity.Opportunity, snap settings.Snapshot) map[string]decision.Result {
	now := o.now()
	decisions := make(map[string]decision.Result, len(opps))
	for _, opp := range opps {
		if !opp.Violation {
			continue
		}

		in := decision.Input{
			Opportunity: opp,
			Cooldown:    snap.Settings.Cooldown(),
			Now:         now,
			AIEnabled:   snap.Settings.AIEnabled,
			Temperature: snap.Settings.AITemperature,
			Context: decision.AdvisorContext{
				ChannelConfigured:   o.channels.Configured(opp.Organization),
				WithinBusinessHours: snap.SLA.Calendar.Contains(now),
				Now:                 now,
			},
		}

		last, err := o.history.LastSentAt(ctx, opp.OrderNo, notification.TypeReminder)
		if err != nil {
			o.log.DatabaseError("load last sent time", err)
			o.tracker.AddError(ctx, fmt.Sprintf("decide %s: %v", opp.OrderNo, err))
		} else {
			in.LastNotified = last
		}

		history, err := o.history.RecentHistory(ctx, opp.OrderNo, now.Add(-24*time.Hour))
		if err != nil {
			o.log.DatabaseError("load notification history", err)
		} else {
			for _, t := range history {
				if t.LastSentAt == nil {
					continue
				}
				in.Context.RecentNotifications = append(in.Context.RecentNotifications, decision.HistoryEntry{
					Type:   string(t.Type),
					SentAt: *t.LastSentAt,
				})
			}
		}

		decisions[opp.OrderNo] = o.engine.Decide(ctx, in)
	}
	return decisions
}
