// Package notification owns the notification-task lifecycle: creation,
// deduplication, cooldown, dispatch, retry, and retention cleanup.
package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type distinguishes reminders from escalations.
type Type string

const (
	TypeReminder   Type = "reminder"
	TypeEscalation Type = "escalation"
)

// Status is the task lifecycle state. Pending tasks are retried until they
// either send or exhaust their retry budget; sent and failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Task is the unit of dispatch: one pending/sent alert.
type Task struct {
	ID              uuid.UUID
	OrderNo         string // synthetic ESCALATION_<org> key for escalations
	Organization    string
	Type            Type
	Status          Status
	DueAt           time.Time
	LastSentAt      *time.Time
	RetryCount      int
	MaxRetries      int
	CooldownMinutes int
	Message         string
	RunID           *uuid.UUID
	LastError       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cooldown returns the task's resend cooldown.
func (t Task) Cooldown() time.Duration {
	return time.Duration(t.CooldownMinutes) * time.Minute
}

// escalationPrefix is a legacy-compatibility artifact: downstream consumers
// of the task table still parse the synthetic order number. It is produced
// and consumed only here.
const escalationPrefix = "ESCALATION_"

// EscalationOrderNo builds the synthetic per-organization escalation key.
func EscalationOrderNo(organization string) string {
	return escalationPrefix + organization
}

// IsEscalationOrderNo reports whether an order number is a synthetic
// escalation key.
func IsEscalationOrderNo(orderNo string) bool {
	return strings.HasPrefix(orderNo, escalationPrefix)
}

// Result summarizes one ExecutePending pass.
type Result struct {
	Total     int      `json:"total"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Escalated int      `json:"escalated"`
	Errors    []string `json:"errors,omitempty"`
}
