package decision

import (
	"fmt"
	"time"
)

// EvaluateRules is the deterministic evaluator: a fixed mapping from
// elapsed/threshold ratios to an action, plus the cooldown check.
func EvaluateRules(in Input) Result {
	opp := in.Opportunity

	if in.LastNotified != nil && in.Cooldown > 0 {
		since := in.Now.Sub(*in.LastNotified)
		if since < in.Cooldown {
			return Result{
				Action:     ActionSkip,
				Priority:   PriorityLow,
				Confidence: 1.0,
				Reasoning:  fmt.Sprintf("notified %s ago, inside %s cooldown", since.Round(time.Minute), in.Cooldown),
			}
		}
	}

	if !opp.Violation {
		return Result{
			Action:     ActionSkip,
			Priority:   PriorityLow,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("elapsed %.1fh below reminder threshold %.1fh", opp.ElapsedHours, opp.ReminderHours),
		}
	}

	if opp.EscalationLevel > 0 {
		priority := PriorityHigh
		if opp.EscalationLevel == 1 {
			priority = PriorityMedium
		}
		return Result{
			Action:     ActionEscalate,
			Priority:   priority,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("elapsed %.1fh at escalation level %d (threshold %.1fh)", opp.ElapsedHours, opp.EscalationLevel, opp.EscalationHours),
		}
	}

	priority := PriorityLow
	if opp.ReminderHours > 0 && opp.ElapsedHours/opp.ReminderHours >= 1.5 {
		priority = PriorityMedium
	}
	return Result{
		Action:     ActionNotify,
		Priority:   priority,
		Confidence: 1.0,
		Reasoning:  fmt.Sprintf("elapsed %.1fh past reminder threshold %.1fh", opp.ElapsedHours, opp.ReminderHours),
	}
}
