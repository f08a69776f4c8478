package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/google/uuid"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/ai/moonshot"
	"slamonitor_backend/platform/config"
	"slamonitor_backend/platform/logger"
)

// Suggestion is the advisor's structured recommendation.
type Suggestion struct {
	Action     Action
	Confidence float64
	Reasoning  string
}

// Advisor consults an LLM for a second opinion on one decision. It is an
// optional refinement: callers must always be able to proceed on the rule
// result alone.
type Advisor struct {
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
	model          *moonshot.KimiModel
	appName        string
	log            *logger.Logger
}

// NewAdvisor builds the advisor agent with the Kimi model.
// Returns an error if the agent or runner cannot be initialized.
func NewAdvisor(cfg config.AIConfig, log *logger.Logger) (*Advisor, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey: cfg.GetMoonshotAPIKey(),
		Model:  cfg.GetAIModel(),
	})

	advisor := &Advisor{
		model:   kimi,
		appName: "decision_advisor",
		log:     log,
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "DecisionAdvisor",
		Model:       kimi,
		Description: "Reviews overdue service-work orders and recommends whether to skip, remind, or escalate, balancing alert fatigue against SLA risk.",
		Instruction: advisorSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ADK agent: %w", err)
	}

	sessionService := session.InMemoryService()

	r, err := runner.New(runner.Config{
		AppName:        advisor.appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ADK runner: %w", err)
	}

	advisor.agent = adkAgent
	advisor.runner = r
	advisor.sessionService = sessionService

	return advisor, nil
}

// Suggest runs the advisor on one opportunity. ruleResult is shared with the
// model as context, not as a constraint; the caller applies the clamp.
func (a *Advisor) Suggest(ctx context.Context, opp opportunity.Opportunity, actx AdvisorContext, ruleResult Result, temperature float64) (Suggestion, error) {
	if a == nil || a.runner == nil || a.sessionService == nil {
		return Suggestion{}, fmt.Errorf("decision advisor is not initialized")
	}

	a.model.SetTemperature(temperature)

	userID := "advisor-" + opp.OrderNo
	sessionID := uuid.New().String()

	_, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   a.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		deleteReq := &session.DeleteRequest{
			AppName:   a.appName,
			UserID:    userID,
			SessionID: sessionID,
		}
		if deleteErr := a.sessionService.Delete(ctx, deleteReq); deleteErr != nil {
			a.log.Warn("failed to delete advisor session", "sessionId", sessionID, "error", deleteErr.Error())
		}
	}()

	userMessage := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: buildAdvisorPrompt(opp, actx, ruleResult)},
		},
	}

	var output string
	runConfig := agent.RunConfig{
		StreamingMode: agent.StreamingModeNone,
	}
	for event, err := range a.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return Suggestion{}, fmt.Errorf("advisor run failed: %w", err)
		}
		if event.Content != nil {
			for _, part := range event.Content.Parts {
				output += part.Text
			}
		}
	}

	return parseSuggestion(output), nil
}

type suggestionWire struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseSuggestion extracts the structured response, falling back to a
// keyword read of the raw text when the model did not produce valid JSON.
func parseSuggestion(output string) Suggestion {
	if raw, ok := extractJSON(output); ok {
		var wire suggestionWire
		if err := json.Unmarshal([]byte(raw), &wire); err == nil {
			if action, ok := ParseAction(strings.ToLower(strings.TrimSpace(wire.Action))); ok {
				confidence := wire.Confidence
				if confidence <= 0 || confidence > 1 {
					confidence = 0.5
				}
				return Suggestion{
					Action:     action,
					Confidence: confidence,
					Reasoning:  strings.TrimSpace(wire.Reasoning),
				}
			}
		}
	}

	return keywordFallback(output)
}

func extractJSON(output string) (string, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return output[start : end+1], true
}

// keywordFallback interprets free text deterministically when the structured
// response is malformed. Escalate wins over notify so a garbled but urgent
// answer is not silently softened.
func keywordFallback(output string) Suggestion {
	lowered := strings.ToLower(output)
	suggestion := Suggestion{
		Action:     ActionSkip,
		Confidence: 0.3,
		Reasoning:  "keyword fallback: " + truncate(strings.TrimSpace(output), 200),
	}
	switch {
	case strings.Contains(lowered, "escalat"):
		suggestion.Action = ActionEscalate
	case strings.Contains(lowered, "notify") || strings.Contains(lowered, "remind"):
		suggestion.Action = ActionNotify
	}
	return suggestion
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
