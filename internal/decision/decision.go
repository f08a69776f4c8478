// Package decision evaluates what to do about one opportunity: nothing, a
// reminder, or an escalation. A deterministic rule evaluator always produces
// a result; an optional AI advisor refines it, bounded by a safety clamp.
package decision

import (
	"time"

	"slamonitor_backend/internal/opportunity"
)

// Action is the decided course of action. Ordering matters: the safety clamp
// compares severity by ordinal.
type Action int

const (
	ActionSkip Action = iota
	ActionNotify
	ActionEscalate
)

func (a Action) String() string {
	switch a {
	case ActionNotify:
		return "notify"
	case ActionEscalate:
		return "escalate"
	default:
		return "skip"
	}
}

// ParseAction maps a wire string back to an Action.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "skip":
		return ActionSkip, true
	case "notify":
		return ActionNotify, true
	case "escalate":
		return ActionEscalate, true
	default:
		return ActionSkip, false
	}
}

// Priority grades how urgent a notify/escalate decision is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Mode selects how a decision is produced.
type Mode string

const (
	// ModeRuleOnly uses only the deterministic rule evaluator.
	ModeRuleOnly Mode = "rule_only"
	// ModeAIOnly adopts the advisor's suggestion; advisor failure still
	// downgrades to the rule result, the AI is never the only path.
	ModeAIOnly Mode = "ai_only"
	// ModeHybrid merges rule and advisor with the severity clamp. Default.
	ModeHybrid Mode = "hybrid"
	// ModeAIFallback adopts the advisor's suggestion unclamped, falling back
	// to the rule result when the advisor errs.
	ModeAIFallback Mode = "ai_fallback"
)

// Result is the tagged decision variant produced by the evaluators and the
// merge.
type Result struct {
	Action     Action
	Priority   Priority
	Confidence float64
	Reasoning  string
	LLMUsed    bool
}

// HistoryEntry is one prior notification fact handed to the advisor.
type HistoryEntry struct {
	Type   string
	SentAt time.Time
}

// AdvisorContext carries the contextual facts the advisor sees beyond the
// opportunity itself.
type AdvisorContext struct {
	RecentNotifications []HistoryEntry
	ChannelConfigured   bool
	WithinBusinessHours bool
	Now                 time.Time
}

// Input is everything needed for one decision call. The engine itself is
// state-free; cooldown and AI parameters come from the caller's settings
// snapshot.
type Input struct {
	Opportunity  opportunity.Opportunity
	LastNotified *time.Time
	Cooldown     time.Duration
	Now          time.Time
	AIEnabled    bool
	Temperature  float64
	Context      AdvisorContext
}
