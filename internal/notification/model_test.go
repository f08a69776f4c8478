package notification

import (
	"testing"
	"time"
)

func TestEscalationOrderNo(t *testing.T) {
	key := EscalationOrderNo("North")
	if key != "ESCALATION_North" {
		t.Fatalf("unexpected key %q", key)
	}
	if !IsEscalationOrderNo(key) {
		t.Fatal("expected the synthetic key to be recognized")
	}
	if IsEscalationOrderNo("GD0001") {
		t.Fatal("expected a real order number not to be recognized")
	}
}

func TestTaskCooldown(t *testing.T) {
	task := Task{CooldownMinutes: 120}
	if task.Cooldown() != 2*time.Hour {
		t.Fatalf("expected 2h cooldown, got %v", task.Cooldown())
	}
}
