package decision

import (
	"context"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/logger"
)

// AdvisorClient abstracts the AI advisor so the engine can be tested without
// a live model.
type AdvisorClient interface {
	Suggest(ctx context.Context, opp opportunity.Opportunity, actx AdvisorContext, ruleResult Result, temperature float64) (Suggestion, error)
}

// Engine produces one decision per call. It holds no per-opportunity state.
type Engine struct {
	mode    Mode
	advisor AdvisorClient
	log     *logger.Logger
}

func NewEngine(mode Mode, advisor AdvisorClient, log *logger.Logger) *Engine {
	if mode == "" {
		mode = ModeHybrid
	}
	return &Engine{
		mode:    mode,
		advisor: advisor,
		log:     log,
	}
}

// Decide evaluates one opportunity. The rule result is always computed first;
// any advisor error downgrades the call to that result, so the AI is never on
// the critical path for producing a decision.
func (e *Engine) Decide(ctx context.Context, in Input) Result {
	rule := EvaluateRules(in)

	if e.mode == ModeRuleOnly || e.advisor == nil || !in.AIEnabled {
		return rule
	}

	suggestion, err := e.advisor.Suggest(ctx, in.Opportunity, in.Context, rule, in.Temperature)
	if err != nil {
		e.log.CollaboratorError("ai_advisor", "suggest", err)
		return rule
	}

	switch e.mode {
	case ModeAIOnly, ModeAIFallback:
		return Result{
			Action:     suggestion.Action,
			Priority:   rule.Priority,
			Confidence: suggestion.Confidence,
			Reasoning:  suggestion.Reasoning,
			LLMUsed:    true,
		}
	default:
		return Merge(rule, suggestion)
	}
}

// Merge combines the rule result with the advisor suggestion. The AI action
// is adopted unless it is more than one severity step above the rule's, in
// which case the rule result stands and the suggestion is discarded. The
// merged confidence is the minimum of the two.
func Merge(rule Result, ai Suggestion) Result {
	if int(ai.Action) > int(rule.Action)+1 {
		return rule
	}

	confidence := rule.Confidence
	if ai.Confidence < confidence {
		confidence = ai.Confidence
	}

	return Result{
		Action:     ai.Action,
		Priority:   rule.Priority,
		Confidence: confidence,
		Reasoning:  ai.Reasoning,
		LLMUsed:    true,
	}
}
