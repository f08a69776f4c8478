package decision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/ai/moonshot"
	"slamonitor_backend/platform/config"
)

const stylistSystemPrompt = `You rewrite service-desk SLA alerts for group chat. Keep every order
number, customer name, elapsed time and supervisor from the input. Be
concise and professional. Reply with the message text only, no preamble.`

// Stylist rewrites notification bodies with the LLM. It is a cosmetic layer:
// callers must fall back to template output on any error.
type Stylist struct {
	model *moonshot.KimiModel
}

func NewStylist(cfg config.AIConfig) *Stylist {
	if !cfg.IsAIConfigured() {
		return nil
	}
	return &Stylist{
		model: moonshot.NewModel(moonshot.Config{
			APIKey: cfg.GetMoonshotAPIKey(),
			Model:  cfg.GetAIModel(),
		}),
	}
}

func (s *Stylist) FormatReminder(ctx context.Context, organization string, lines []string) (string, error) {
	if s == nil || s.model == nil {
		return "", fmt.Errorf("stylist is not initialized")
	}
	prompt := fmt.Sprintf("Write an SLA reminder for team %s covering these overdue orders:\n%s",
		organization, strings.Join(lines, "\n"))
	return s.complete(ctx, prompt)
}

func (s *Stylist) FormatEscalation(ctx context.Context, organization string, orders []opportunity.Opportunity) (string, error) {
	if s == nil || s.model == nil {
		return "", fmt.Errorf("stylist is not initialized")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write an urgent SLA escalation for team %s. These orders are past the escalation threshold:\n", organization)
	for _, o := range orders {
		fmt.Fprintf(&b, "- %s %s (%s), %.1fh elapsed of %.1fh allowed, level %d, supervisor %s\n",
			o.OrderNo, o.CustomerName, o.Status, o.ElapsedHours, o.EscalationHours, o.EscalationLevel, o.Supervisor)
	}
	return s.complete(ctx, b.String())
}

func (s *Stylist) complete(ctx context.Context, prompt string) (string, error) {
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(stylistSystemPrompt)},
			},
		},
	}

	var text string
	var genErr error
	for resp, err := range s.model.GenerateContent(ctx, req, false) {
		if err != nil {
			genErr = err
			break
		}
		if resp != nil && resp.Content != nil {
			for _, part := range resp.Content.Parts {
				if part != nil {
					text += part.Text
				}
			}
		}
	}
	if genErr != nil {
		return "", genErr
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty stylist response")
	}
	return text, nil
}
