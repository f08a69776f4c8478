package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"slamonitor_backend/internal/decision"
	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/logger"
)

type memoryTaskStore struct {
	tasks  []*Task
	purged []string
}

func (s *memoryTaskStore) Insert(_ context.Context, task Task) (uuid.UUID, error) {
	task.ID = uuid.New()
	s.tasks = append(s.tasks, &task)
	return task.ID, nil
}

func (s *memoryTaskStore) ListPending(_ context.Context) ([]Task, error) {
	var out []Task
	for _, t := range s.tasks {
		if t.Status == StatusPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memoryTaskStore) HasPending(_ context.Context, orderNo string, typ Type) (bool, error) {
	for _, t := range s.tasks {
		if t.OrderNo == orderNo && t.Type == typ && t.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryTaskStore) LastSentAt(_ context.Context, orderNo string, typ Type) (*time.Time, error) {
	var latest *time.Time
	for _, t := range s.tasks {
		if t.OrderNo == orderNo && t.Type == typ && t.LastSentAt != nil {
			if latest == nil || t.LastSentAt.After(*latest) {
				latest = t.LastSentAt
			}
		}
	}
	return latest, nil
}

func (s *memoryTaskStore) PurgeLegacyEscalations(_ context.Context, organization string) (int64, error) {
	s.purged = append(s.purged, organization)
	return 0, nil
}

func (s *memoryTaskStore) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	for _, t := range s.tasks {
		if t.ID == id {
			t.Status = StatusSent
			t.LastSentAt = &sentAt
			return nil
		}
	}
	return errors.New("task not found")
}

func (s *memoryTaskStore) RecordFailure(_ context.Context, id uuid.UUID, reason string) (Status, error) {
	for _, t := range s.tasks {
		if t.ID == id {
			t.RetryCount++
			t.LastError = &reason
			if t.RetryCount >= t.MaxRetries {
				t.Status = StatusFailed
			}
			return t.Status, nil
		}
	}
	return StatusPending, errors.New("task not found")
}

func (s *memoryTaskStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*Task
	var deleted int64
	for _, t := range s.tasks {
		if t.Status != StatusPending && t.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return deleted, nil
}

func (s *memoryTaskStore) byOrder(orderNo string) *Task {
	for _, t := range s.tasks {
		if t.OrderNo == orderNo {
			return t
		}
	}
	return nil
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	organization string
	message      string
	escalation   bool
}

func (f *fakeSender) Send(_ context.Context, organization, message string, escalation bool) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{organization, message, escalation})
	return nil
}

type fakeEscalations struct {
	byOrg map[string][]opportunity.Opportunity
	err   error
}

func (f *fakeEscalations) EscalatingForOrganization(_ context.Context, organization string) ([]opportunity.Opportunity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byOrg[organization], nil
}

func newTestManager(store TaskStore, sender Sender, escalations EscalationSource) *Manager {
	m := NewManager(store, sender, escalations, logger.New("development"))
	m.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return m
}

func testParams() Params {
	return Params{Cooldown: 2 * time.Hour, MaxRetries: 3}
}

func violatingOrder(orderNo, org string, level int) opportunity.Opportunity {
	return opportunity.Opportunity{
		OrderNo:         orderNo,
		CustomerName:    "Customer " + orderNo,
		Organization:    org,
		Supervisor:      "Sup",
		Status:          opportunity.StatusPendingAppointment,
		ElapsedHours:    6,
		ReminderHours:   4,
		EscalationHours: 8,
		Violation:       true,
		Overdue:         level > 0,
		EscalationLevel: level,
	}
}

func notifyAll(opps []opportunity.Opportunity) map[string]decision.Result {
	out := map[string]decision.Result{}
	for _, o := range opps {
		out[o.OrderNo] = decision.Result{Action: decision.ActionNotify, Confidence: 1}
	}
	return out
}

func TestCreateTasksCreatesOneReminderPerViolatingOrder(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})
	opps := []opportunity.Opportunity{
		violatingOrder("GD0001", "North", 0),
		violatingOrder("GD0002", "North", 0),
	}

	created := m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())
	if len(created) != 2 {
		t.Fatalf("expected 2 reminder tasks, got %d", len(created))
	}
	task := store.byOrder("GD0001")
	if task == nil || task.Type != TypeReminder || task.Status != StatusPending {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.MaxRetries != 3 || task.CooldownMinutes != 120 {
		t.Fatalf("expected params applied to task, got %+v", task)
	}
}

func TestCreateTasksSkipsNonViolatingAndSkippedOrders(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})

	clean := violatingOrder("GD0001", "North", 0)
	clean.Violation = false
	skipped := violatingOrder("GD0002", "North", 0)

	decisions := map[string]decision.Result{
		"GD0002": {Action: decision.ActionSkip},
	}
	created := m.CreateTasks(context.Background(), []opportunity.Opportunity{clean, skipped}, decisions, uuid.New(), testParams())
	if len(created) != 0 {
		t.Fatalf("expected no tasks, got %d", len(created))
	}
}

func TestCreateTasksIsIdempotentWhilePending(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})
	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}

	first := m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())
	second := m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("expected 1 then 0 tasks, got %d then %d", len(first), len(second))
	}
}

func TestCreateTasksRespectsCooldownAfterSend(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})

	recent := m.now().Add(-30 * time.Minute)
	sent := &Task{ID: uuid.New(), OrderNo: "GD0001", Type: TypeReminder, Status: StatusSent, LastSentAt: &recent}
	store.tasks = append(store.tasks, sent)

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}
	created := m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())
	if len(created) != 0 {
		t.Fatal("expected cooldown to suppress a fresh reminder")
	}
}

func TestCreateTasksAllowsNewReminderAfterCooldown(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})

	old := m.now().Add(-3 * time.Hour)
	sent := &Task{ID: uuid.New(), OrderNo: "GD0001", Type: TypeReminder, Status: StatusSent, LastSentAt: &old}
	store.tasks = append(store.tasks, sent)

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}
	created := m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())
	if len(created) != 1 {
		t.Fatal("expected a new reminder after the cooldown elapsed")
	}
}

func TestCreateTasksAggregatesEscalationsPerOrganization(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})
	opps := []opportunity.Opportunity{
		violatingOrder("GD0001", "North", 1),
		violatingOrder("GD0002", "North", 2),
		violatingOrder("GD0003", "South", 1),
	}

	created := m.CreateTasks(context.Background(), opps, map[string]decision.Result{}, uuid.New(), testParams())

	var escalations []Task
	for _, task := range created {
		if task.Type == TypeEscalation {
			escalations = append(escalations, task)
		}
	}
	if len(escalations) != 2 {
		t.Fatalf("expected one escalation task per organization, got %d", len(escalations))
	}

	north := store.byOrder(EscalationOrderNo("North"))
	if north == nil {
		t.Fatal("expected an escalation task keyed by the synthetic order number")
	}
	if !strings.Contains(north.Message, "GD0001") || !strings.Contains(north.Message, "GD0002") {
		t.Fatalf("expected both escalating orders in the message, got %q", north.Message)
	}
	if len(store.purged) != 2 {
		t.Fatalf("expected legacy escalation purge per organization, got %v", store.purged)
	}
}

func TestExecutePendingGroupsRemindersIntoOneDigestPerOrganization(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	m := newTestManager(store, sender, &fakeEscalations{})
	opps := []opportunity.Opportunity{
		violatingOrder("GD0001", "North", 0),
		violatingOrder("GD0002", "North", 0),
	}
	m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())

	res := m.ExecutePending(context.Background(), testParams())
	if res.Total != 2 || res.Sent != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one grouped message, got %d sends", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.escalation {
		t.Fatal("expected a reminder send, not an escalation")
	}
	if !strings.Contains(msg.message, "GD0001") || !strings.Contains(msg.message, "GD0002") {
		t.Fatalf("expected both orders in the digest, got %q", msg.message)
	}
	if store.byOrder("GD0001").Status != StatusSent {
		t.Fatal("expected the task marked sent")
	}
}

func TestExecutePendingEscalationUsesLiveBacklogAndOpsChannel(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	live := &fakeEscalations{byOrg: map[string][]opportunity.Opportunity{
		"North": {violatingOrder("GD0009", "North", 1)},
	}}
	m := newTestManager(store, sender, live)

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 1)}
	m.CreateTasks(context.Background(), opps, map[string]decision.Result{}, uuid.New(), testParams())

	res := m.ExecutePending(context.Background(), testParams())
	if res.Escalated != 1 || res.Sent != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	var escalation *sentMessage
	for i := range sender.sent {
		if sender.sent[i].escalation {
			escalation = &sender.sent[i]
		}
	}
	if escalation == nil {
		t.Fatal("expected an escalation send")
	}
	// The body reflects the backlog at send time, not at creation.
	if !strings.Contains(escalation.message, "GD0009") {
		t.Fatalf("expected the live order in the escalation, got %q", escalation.message)
	}
}

func TestExecutePendingMarksResolvedEscalationWithoutSending(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	m := newTestManager(store, sender, &fakeEscalations{byOrg: map[string][]opportunity.Opportunity{}})

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 1)}
	m.CreateTasks(context.Background(), opps, map[string]decision.Result{}, uuid.New(), testParams())

	res := m.ExecutePending(context.Background(), testParams())
	if res.Escalated != 0 {
		t.Fatalf("expected no escalation dispatched, got %+v", res)
	}
	for _, msg := range sender.sent {
		if msg.escalation {
			t.Fatal("expected no escalation message for a resolved breach")
		}
	}
	task := store.byOrder(EscalationOrderNo("North"))
	if task.Status != StatusSent {
		t.Fatalf("expected the resolved escalation task closed, got %s", task.Status)
	}
}

func TestExecutePendingSkipsTasksInsideCooldown(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	m := newTestManager(store, sender, &fakeEscalations{})

	recent := m.now().Add(-10 * time.Minute)
	store.tasks = append(store.tasks, &Task{
		ID: uuid.New(), OrderNo: "GD0001", Organization: "North",
		Type: TypeReminder, Status: StatusPending,
		DueAt: m.now().Add(-time.Hour), LastSentAt: &recent,
		CooldownMinutes: 120, MaxRetries: 3, Message: "- GD0001",
	})

	res := m.ExecutePending(context.Background(), testParams())
	if res.Total != 0 || len(sender.sent) != 0 {
		t.Fatalf("expected cooldown to hold the task back, got %+v", res)
	}
}

func TestExecutePendingRecordsFailureAndKeepsTaskPending(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{err: errors.New("webhook 502")}
	m := newTestManager(store, sender, &fakeEscalations{})

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}
	m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())

	res := m.ExecutePending(context.Background(), testParams())
	if res.Failed != 1 || res.Sent != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	task := store.byOrder("GD0001")
	if task.Status != StatusPending || task.RetryCount != 1 {
		t.Fatalf("expected pending task with one retry, got %+v", task)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected the send error recorded, got %v", res.Errors)
	}
}

func TestTaskFailsTerminallyAtMaxRetries(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{err: errors.New("webhook down")}
	m := newTestManager(store, sender, &fakeEscalations{})

	store.tasks = append(store.tasks, &Task{
		ID: uuid.New(), OrderNo: "GD0001", Organization: "North",
		Type: TypeReminder, Status: StatusPending,
		DueAt: m.now().Add(-time.Hour), MaxRetries: 2, Message: "- GD0001",
	})

	m.ExecutePending(context.Background(), testParams())
	task := store.byOrder("GD0001")
	if task.Status != StatusPending || task.RetryCount != 1 {
		t.Fatalf("expected one recorded retry, got %+v", task)
	}

	m.ExecutePending(context.Background(), testParams())
	if task.Status != StatusFailed || task.RetryCount != 2 {
		t.Fatalf("expected terminal failure at max retries, got %+v", task)
	}

	res := m.ExecutePending(context.Background(), testParams())
	if res.Total != 0 {
		t.Fatalf("expected failed task excluded from dispatch, got %+v", res)
	}
}

type fakeAIFormatter struct {
	reminder string
	err      error
}

func (f *fakeAIFormatter) FormatReminder(_ context.Context, _ string, _ []string) (string, error) {
	return f.reminder, f.err
}

func (f *fakeAIFormatter) FormatEscalation(_ context.Context, _ string, _ []opportunity.Opportunity) (string, error) {
	return f.reminder, f.err
}

func TestAIFormatterFailureFallsBackToTemplate(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	m := newTestManager(store, sender, &fakeEscalations{})
	m.SetAIFormatter(&fakeAIFormatter{err: errors.New("model timeout")})

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}
	m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())

	res := m.ExecutePending(context.Background(), testParams())
	if res.Sent != 1 {
		t.Fatalf("expected the template fallback to still send, got %+v", res)
	}
	if !strings.Contains(sender.sent[0].message, "GD0001") {
		t.Fatalf("expected template digest, got %q", sender.sent[0].message)
	}
}

func TestAIFormatterOutputIsUsedWhenAvailable(t *testing.T) {
	store := &memoryTaskStore{}
	sender := &fakeSender{}
	m := newTestManager(store, sender, &fakeEscalations{})
	m.SetAIFormatter(&fakeAIFormatter{reminder: "styled reminder for GD0001"})

	opps := []opportunity.Opportunity{violatingOrder("GD0001", "North", 0)}
	m.CreateTasks(context.Background(), opps, notifyAll(opps), uuid.New(), testParams())

	m.ExecutePending(context.Background(), testParams())
	if sender.sent[0].message != "styled reminder for GD0001" {
		t.Fatalf("expected the styled message, got %q", sender.sent[0].message)
	}
}

func TestCleanupOldDeletesTerminalTasksOnly(t *testing.T) {
	store := &memoryTaskStore{}
	m := newTestManager(store, &fakeSender{}, &fakeEscalations{})

	old := m.now().AddDate(0, 0, -40)
	store.tasks = append(store.tasks,
		&Task{ID: uuid.New(), OrderNo: "GD0001", Status: StatusSent, CreatedAt: old},
		&Task{ID: uuid.New(), OrderNo: "GD0002", Status: StatusPending, CreatedAt: old},
	)

	deleted, err := m.CleanupOld(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted task, got %d", deleted)
	}
	if store.byOrder("GD0002") == nil {
		t.Fatal("expected the pending task preserved")
	}
}
