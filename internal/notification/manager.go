package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slamonitor_backend/internal/decision"
	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/logger"
)

// TaskStore is the persistence surface the manager needs. *Repository
// satisfies it.
type TaskStore interface {
	Insert(ctx context.Context, task Task) (uuid.UUID, error)
	ListPending(ctx context.Context) ([]Task, error)
	HasPending(ctx context.Context, orderNo string, typ Type) (bool, error)
	LastSentAt(ctx context.Context, orderNo string, typ Type) (*time.Time, error)
	PurgeLegacyEscalations(ctx context.Context, organization string) (int64, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, reason string) (Status, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sender delivers a rendered message to the chat channel of an organization.
// The escalation flag routes to the ops channel instead of the
// organization's own channel.
type Sender interface {
	Send(ctx context.Context, organization, message string, escalation bool) error
}

// EscalationSource yields the orders currently past their escalation
// threshold for one organization. Escalation bodies are rendered from this
// at send time so the message reflects the live backlog, not the backlog at
// task creation.
type EscalationSource interface {
	EscalatingForOrganization(ctx context.Context, organization string) ([]opportunity.Opportunity, error)
}

// AIFormatter is the optional LLM formatting path. Any error falls back to
// the template formatter.
type AIFormatter interface {
	FormatReminder(ctx context.Context, organization string, lines []string) (string, error)
	FormatEscalation(ctx context.Context, organization string, orders []opportunity.Opportunity) (string, error)
}

// Params carries the per-run settings snapshot the manager applies.
type Params struct {
	Cooldown   time.Duration
	MaxRetries int
}

// Manager owns the notification task lifecycle: creation with
// deduplication, cooldown-gated dispatch, retry accounting and retention
// cleanup.
type Manager struct {
	store       TaskStore
	sender      Sender
	escalations EscalationSource
	formatter   *Formatter
	aiFormatter AIFormatter
	log         *logger.Logger
	now         func() time.Time
}

func NewManager(store TaskStore, sender Sender, escalations EscalationSource, log *logger.Logger) *Manager {
	return &Manager{
		store:       store,
		sender:      sender,
		escalations: escalations,
		formatter:   NewFormatter(),
		log:         log,
		now:         time.Now,
	}
}

// SetAIFormatter enables the LLM formatting path.
func (m *Manager) SetAIFormatter(f AIFormatter) {
	m.aiFormatter = f
}

// CreateTasks persists the notification tasks a run's decisions call for.
// Reminders are one task per violating order; escalations are one task per
// organization keyed by the synthetic escalation order number. A pending
// task of the same kind, or a send within the cooldown window, suppresses
// creation. Per-item store errors are logged and skipped so one bad row
// never blocks the rest of the pass.
func (m *Manager) CreateTasks(ctx context.Context, opps []opportunity.Opportunity, decisions map[string]decision.Result, runID uuid.UUID, p Params) []Task {
	now := m.now()
	var created []Task

	for _, opp := range opps {
		if !opp.Violation {
			continue
		}
		if d, ok := decisions[opp.OrderNo]; ok && d.Action == decision.ActionSkip {
			continue
		}
		task, err := m.createOne(ctx, Task{
			OrderNo:      opp.OrderNo,
			Organization: opp.Organization,
			Type:         TypeReminder,
			Message:      m.formatter.ReminderLine(opp),
		}, now, runID, p)
		if err != nil {
			m.log.DatabaseError("create reminder task", err)
			continue
		}
		if task != nil {
			created = append(created, *task)
		}
	}

	for org, orders := range escalatingByOrganization(opps) {
		if _, err := m.store.PurgeLegacyEscalations(ctx, org); err != nil {
			m.log.DatabaseError("purge legacy escalation tasks", err)
		}
		body, err := m.formatter.Escalation(org, orders, now)
		if err != nil {
			m.log.CollaboratorError("formatter", "render escalation", err)
			continue
		}
		task, err := m.createOne(ctx, Task{
			OrderNo:      EscalationOrderNo(org),
			Organization: org,
			Type:         TypeEscalation,
			Message:      body,
		}, now, runID, p)
		if err != nil {
			m.log.DatabaseError("create escalation task", err)
			continue
		}
		if task != nil {
			created = append(created, *task)
		}
	}

	return created
}

// createOne applies the dedup and cooldown gates, then inserts. A nil task
// with nil error means creation was suppressed.
func (m *Manager) createOne(ctx context.Context, task Task, now time.Time, runID uuid.UUID, p Params) (*Task, error) {
	pending, err := m.store.HasPending(ctx, task.OrderNo, task.Type)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, nil
	}
	last, err := m.store.LastSentAt(ctx, task.OrderNo, task.Type)
	if err != nil {
		return nil, err
	}
	if last != nil && now.Sub(*last) < p.Cooldown {
		return nil, nil
	}

	task.Status = StatusPending
	task.DueAt = now
	task.MaxRetries = p.MaxRetries
	task.CooldownMinutes = int(p.Cooldown / time.Minute)
	task.RunID = &runID
	id, err := m.store.Insert(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = id
	return &task, nil
}

// ExecutePending dispatches all due pending tasks. Reminders are grouped
// into one digest per organization; escalations re-query the live backlog
// before rendering. Send failures record a retry and the task stays pending
// until its retry budget is spent.
func (m *Manager) ExecutePending(ctx context.Context, p Params) Result {
	res := Result{}
	tasks, err := m.store.ListPending(ctx)
	if err != nil {
		m.log.DatabaseError("list pending tasks", err)
		res.Errors = append(res.Errors, fmt.Sprintf("list pending: %v", err))
		return res
	}

	now := m.now()
	reminders := map[string][]Task{}
	var escalations []Task
	for _, t := range tasks {
		if t.DueAt.After(now) {
			continue
		}
		if t.LastSentAt != nil && now.Sub(*t.LastSentAt) < t.Cooldown() {
			continue
		}
		if t.Type == TypeEscalation {
			escalations = append(escalations, t)
		} else {
			reminders[t.Organization] = append(reminders[t.Organization], t)
		}
		res.Total++
	}

	for org, group := range reminders {
		m.dispatchReminders(ctx, org, group, now, &res)
	}
	for _, t := range escalations {
		m.dispatchEscalation(ctx, t, now, &res)
	}
	return res
}

func (m *Manager) dispatchReminders(ctx context.Context, org string, group []Task, now time.Time, res *Result) {
	lines := make([]string, 0, len(group))
	for _, t := range group {
		lines = append(lines, t.Message)
	}
	body := m.renderReminder(ctx, org, lines, now)
	if body == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("render reminder digest for %s failed", org))
		return
	}

	if err := m.sender.Send(ctx, org, body, false); err != nil {
		for _, t := range group {
			m.recordFailure(ctx, t, err, res)
		}
		return
	}
	for _, t := range group {
		if err := m.store.MarkSent(ctx, t.ID, now); err != nil {
			m.log.DatabaseError("mark task sent", err)
		}
		m.log.DispatchEvent(t.OrderNo, org, string(t.Type), true, "")
		res.Sent++
	}
}

func (m *Manager) dispatchEscalation(ctx context.Context, t Task, now time.Time, res *Result) {
	body := t.Message
	orders, err := m.escalations.EscalatingForOrganization(ctx, t.Organization)
	switch {
	case err != nil:
		// Stale body is better than no escalation.
		m.log.CollaboratorError("escalation source", "re-query backlog", err)
	case len(orders) == 0:
		// The breach resolved between creation and dispatch.
		if err := m.store.MarkSent(ctx, t.ID, now); err != nil {
			m.log.DatabaseError("mark task sent", err)
		}
		m.log.DispatchEvent(t.OrderNo, t.Organization, string(t.Type), true, "resolved before dispatch")
		return
	default:
		body = m.renderEscalation(ctx, t.Organization, orders, now, body)
	}

	if err := m.sender.Send(ctx, t.Organization, body, true); err != nil {
		m.recordFailure(ctx, t, err, res)
		return
	}
	if err := m.store.MarkSent(ctx, t.ID, now); err != nil {
		m.log.DatabaseError("mark task sent", err)
	}
	m.log.DispatchEvent(t.OrderNo, t.Organization, string(t.Type), true, "")
	res.Sent++
	res.Escalated++
}

func (m *Manager) renderReminder(ctx context.Context, org string, lines []string, now time.Time) string {
	if m.aiFormatter != nil {
		body, err := m.aiFormatter.FormatReminder(ctx, org, lines)
		if err == nil && body != "" {
			return body
		}
		if err != nil {
			m.log.CollaboratorError("ai formatter", "format reminder", err)
		}
	}
	body, err := m.formatter.ReminderDigest(org, lines, now)
	if err != nil {
		m.log.CollaboratorError("formatter", "render reminder digest", err)
		return ""
	}
	return body
}

func (m *Manager) renderEscalation(ctx context.Context, org string, orders []opportunity.Opportunity, now time.Time, fallback string) string {
	if m.aiFormatter != nil {
		body, err := m.aiFormatter.FormatEscalation(ctx, org, orders)
		if err == nil && body != "" {
			return body
		}
		if err != nil {
			m.log.CollaboratorError("ai formatter", "format escalation", err)
		}
	}
	body, err := m.formatter.Escalation(org, orders, now)
	if err != nil {
		m.log.CollaboratorError("formatter", "render escalation", err)
		return fallback
	}
	return body
}

func (m *Manager) recordFailure(ctx context.Context, t Task, sendErr error, res *Result) {
	status, err := m.store.RecordFailure(ctx, t.ID, sendErr.Error())
	if err != nil {
		m.log.DatabaseError("record task failure", err)
	}
	m.log.DispatchEvent(t.OrderNo, t.Organization, string(t.Type), false, sendErr.Error())
	res.Failed++
	res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", t.Type, t.OrderNo, sendErr))
	if status == StatusFailed {
		m.log.Warn("notification task exhausted retries", "order_no", t.OrderNo, "type", string(t.Type))
	}
}

// CleanupOld deletes sent and failed tasks older than the retention window.
func (m *Manager) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := m.now().AddDate(0, 0, -retentionDays)
	return m.store.DeleteTerminalBefore(ctx, cutoff)
}

func escalatingByOrganization(opps []opportunity.Opportunity) map[string][]opportunity.Opportunity {
	out := map[string][]opportunity.Opportunity{}
	for _, o := range opps {
		if o.EscalationLevel > 0 {
			out[o.Organization] = append(out[o.Organization], o)
		}
	}
	return out
}
