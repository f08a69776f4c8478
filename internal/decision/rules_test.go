package decision

import (
	"testing"
	"time"

	"slamonitor_backend/internal/opportunity"
)

func violating(elapsed float64) opportunity.Opportunity {
	return opportunity.Opportunity{
		OrderNo:         "GD0001",
		Status:          opportunity.StatusPendingAppointment,
		ElapsedHours:    elapsed,
		ReminderHours:   4,
		EscalationHours: 8,
		Violation:       true,
	}
}

func TestEvaluateRulesSkipsInsideCooldown(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Minute)

	got := EvaluateRules(Input{
		Opportunity:  violating(6),
		LastNotified: &last,
		Cooldown:     2 * time.Hour,
		Now:          now,
	})
	if got.Action != ActionSkip {
		t.Fatalf("expected skip inside cooldown, got %s", got.Action)
	}
}

func TestEvaluateRulesNotifiesAfterCooldownElapsed(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	last := now.Add(-3 * time.Hour)

	got := EvaluateRules(Input{
		Opportunity:  violating(5),
		LastNotified: &last,
		Cooldown:     2 * time.Hour,
		Now:          now,
	})
	if got.Action != ActionNotify {
		t.Fatalf("expected notify after cooldown elapsed, got %s", got.Action)
	}
}

func TestEvaluateRulesSkipsWithoutViolation(t *testing.T) {
	opp := violating(2)
	opp.Violation = false

	got := EvaluateRules(Input{Opportunity: opp, Now: time.Now()})
	if got.Action != ActionSkip {
		t.Fatalf("expected skip without violation, got %s", got.Action)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected full confidence from rules, got %v", got.Confidence)
	}
}

func TestEvaluateRulesEscalatesAtLevelOneWithMediumPriority(t *testing.T) {
	opp := violating(10)
	opp.Overdue = true
	opp.EscalationLevel = 1

	got := EvaluateRules(Input{Opportunity: opp, Now: time.Now()})
	if got.Action != ActionEscalate {
		t.Fatalf("expected escalate, got %s", got.Action)
	}
	if got.Priority != PriorityMedium {
		t.Fatalf("expected medium priority at level 1, got %s", got.Priority)
	}
}

func TestEvaluateRulesEscalatesAtHigherLevelsWithHighPriority(t *testing.T) {
	opp := violating(20)
	opp.Overdue = true
	opp.EscalationLevel = 2

	got := EvaluateRules(Input{Opportunity: opp, Now: time.Now()})
	if got.Action != ActionEscalate || got.Priority != PriorityHigh {
		t.Fatalf("expected high-priority escalate at level 2, got %s/%s", got.Action, got.Priority)
	}
}

func TestEvaluateRulesRaisesPriorityAtOneAndAHalfTimesThreshold(t *testing.T) {
	got := EvaluateRules(Input{Opportunity: violating(6), Now: time.Now()})
	if got.Action != ActionNotify || got.Priority != PriorityMedium {
		t.Fatalf("expected medium-priority notify at 1.5x threshold, got %s/%s", got.Action, got.Priority)
	}

	got = EvaluateRules(Input{Opportunity: violating(5), Now: time.Now()})
	if got.Action != ActionNotify || got.Priority != PriorityLow {
		t.Fatalf("expected low-priority notify below 1.5x threshold, got %s/%s", got.Action, got.Priority)
	}
}
