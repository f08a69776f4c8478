package decision

import "testing"

func TestParseSuggestionReadsStructuredResponse(t *testing.T) {
	got := parseSuggestion(`{"action": "escalate", "confidence": 0.85, "reasoning": "far past threshold"}`)
	if got.Action != ActionEscalate {
		t.Fatalf("expected escalate, got %s", got.Action)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", got.Confidence)
	}
	if got.Reasoning != "far past threshold" {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestParseSuggestionExtractsJSONFromSurroundingText(t *testing.T) {
	output := "Here is my recommendation:\n```json\n{\"action\": \"notify\", \"confidence\": 0.7, \"reasoning\": \"first alert\"}\n```"
	got := parseSuggestion(output)
	if got.Action != ActionNotify || got.Confidence != 0.7 {
		t.Fatalf("expected notify at 0.7 from fenced JSON, got %+v", got)
	}
}

func TestParseSuggestionDefaultsOutOfRangeConfidence(t *testing.T) {
	got := parseSuggestion(`{"action": "notify", "confidence": 3.5}`)
	if got.Confidence != 0.5 {
		t.Fatalf("expected confidence clamped to 0.5, got %v", got.Confidence)
	}
}

func TestParseSuggestionFallsBackToKeywords(t *testing.T) {
	got := parseSuggestion("I would escalate this to the supervisor immediately.")
	if got.Action != ActionEscalate {
		t.Fatalf("expected escalate from keyword fallback, got %s", got.Action)
	}
	if got.Confidence != 0.3 {
		t.Fatalf("expected low fallback confidence, got %v", got.Confidence)
	}
}

func TestKeywordFallbackPrefersEscalateOverNotify(t *testing.T) {
	got := keywordFallback("you could notify them, but honestly escalate it")
	if got.Action != ActionEscalate {
		t.Fatalf("expected escalate to win over notify, got %s", got.Action)
	}
}

func TestKeywordFallbackDefaultsToSkip(t *testing.T) {
	got := keywordFallback("nothing actionable here")
	if got.Action != ActionSkip {
		t.Fatalf("expected skip default, got %s", got.Action)
	}
}
