package decision

import (
	"fmt"
	"strings"

	"slamonitor_backend/internal/opportunity"
)

const advisorSystemPrompt = `You are an SLA monitoring advisor for a field-service operation.
You review one overdue service-work order at a time and recommend exactly one action:
- "skip": no alert now (e.g. recently notified, outside business hours, low urgency)
- "notify": send a reminder to the owning organization's channel
- "escalate": raise to the operations channel

Respond with ONLY a JSON object, no prose around it:
{"action": "skip|notify|escalate", "confidence": 0.0-1.0, "reasoning": "one short sentence"}`

func buildAdvisorPrompt(opp opportunity.Opportunity, actx AdvisorContext, ruleResult Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Order %s (%s) for organization %q, supervisor %q.\n",
		opp.OrderNo, opp.Status, opp.Organization, opp.Supervisor)
	fmt.Fprintf(&b, "Elapsed business time: %.1fh. Reminder threshold: %.1fh. Escalation threshold: %.1fh. Escalation level: %d.\n",
		opp.ElapsedHours, opp.ReminderHours, opp.EscalationHours, opp.EscalationLevel)

	fmt.Fprintf(&b, "Rule evaluator suggests: %s (%s priority) because %s.\n",
		ruleResult.Action, ruleResult.Priority, ruleResult.Reasoning)

	if len(actx.RecentNotifications) == 0 {
		b.WriteString("No notifications have been sent for this order recently.\n")
	} else {
		b.WriteString("Recent notifications:\n")
		for _, entry := range actx.RecentNotifications {
			fmt.Fprintf(&b, "- %s at %s\n", entry.Type, entry.SentAt.Format("2006-01-02 15:04"))
		}
	}

	if actx.ChannelConfigured {
		b.WriteString("A dedicated chat channel is configured for this organization.\n")
	} else {
		b.WriteString("No dedicated channel is configured; alerts go to the default channel.\n")
	}

	if actx.WithinBusinessHours {
		fmt.Fprintf(&b, "Current time %s is within business hours.\n", actx.Now.Format("15:04"))
	} else {
		fmt.Fprintf(&b, "Current time %s is outside business hours.\n", actx.Now.Format("15:04"))
	}

	b.WriteString("Reply with the JSON object only.")
	return b.String()
}
