package notification

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"slamonitor_backend/internal/opportunity"
)

// Formatter renders chat message bodies from templates. It is the default
// formatting path; the AI path fails over to it on any error.
type Formatter struct {
	reminderDigest *template.Template
	escalation     *template.Template
}

const reminderDigestTemplate = `SLA reminder for {{.Organization}} ({{.Count}} order{{if gt .Count 1}}s{{end}} past reminder threshold):
{{- range .Lines}}
{{.}}
{{- end}}
Generated {{.Now}}.`

const escalationTemplate = `SLA ESCALATION — {{.Organization}} has {{.Count}} order{{if gt .Count 1}}s{{end}} past the escalation threshold:
{{- range .Orders}}
- {{.OrderNo}} {{.CustomerName}} ({{.Status}}) — {{printf "%.1f" .ElapsedHours}}h elapsed, threshold {{printf "%.1f" .EscalationHours}}h, level {{.EscalationLevel}}, supervisor {{.Supervisor}}
{{- end}}
Immediate follow-up required. Generated {{.Now}}.`

type reminderDigestData struct {
	Organization string
	Count        int
	Lines        []string
	Now          string
}

type escalationData struct {
	Organization string
	Count        int
	Orders       []opportunity.Opportunity
	Now          string
}

func NewFormatter() *Formatter {
	return &Formatter{
		reminderDigest: template.Must(template.New("reminder_digest").Parse(reminderDigestTemplate)),
		escalation:     template.Must(template.New("escalation").Parse(escalationTemplate)),
	}
}

// ReminderLine renders the single-order bullet stored on a reminder task at
// creation time.
func (f *Formatter) ReminderLine(opp opportunity.Opportunity) string {
	return fmt.Sprintf("- %s %s (%s) — %.1fh elapsed, threshold %.1fh, supervisor %s",
		opp.OrderNo, opp.CustomerName, opp.Status, opp.ElapsedHours, opp.ReminderHours, opp.Supervisor)
}

// ReminderDigest renders the aggregated reminder body for one organization
// from the stored per-order lines.
func (f *Formatter) ReminderDigest(organization string, lines []string, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := f.reminderDigest.Execute(&buf, reminderDigestData{
		Organization: organization,
		Count:        len(lines),
		Lines:        lines,
		Now:          now.Format("2006-01-02 15:04"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Escalation renders the aggregated escalation body for one organization
// from the current escalating orders.
func (f *Formatter) Escalation(organization string, orders []opportunity.Opportunity, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := f.escalation.Execute(&buf, escalationData{
		Organization: organization,
		Count:        len(orders),
		Orders:       orders,
		Now:          now.Format("2006-01-02 15:04"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
