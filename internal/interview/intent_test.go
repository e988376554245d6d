package interview

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestClassifyRuleMatches(t *testing.T) {
	oracle := &scriptedProvider{}
	c := NewClassifier(scriptedRouter(oracle), 0.7, zap.NewNop())

	tests := []struct {
		message string
		want    Intent
	}{
		{"I want to end the interview", IntentEndInterview},
		{"can we switch topic please", IntentSwitchTopic},
		{"give me a hint", IntentNeedHint},
		{"this is too hard, easier question please", IntentWantEasier},
		{"that was too easy", IntentWantHarder},
		{"can we talk about databases", IntentWantSpecific},
		{"how am i doing so far?", IntentViewFeedback},
	}
	for _, tt := range tests {
		got := c.Classify(context.Background(), tt.message)
		if got.Intent != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.message, got.Intent, tt.want)
		}
		if got.Source != "rule" {
			t.Errorf("Classify(%q) source = %s, want rule", tt.message, got.Source)
		}
	}
	if oracle.callCount() != 0 {
		t.Errorf("rule matches must not call the oracle, got %d calls", oracle.callCount())
	}
}

func TestClassifyRulePriorityEndBeatsSwitch(t *testing.T) {
	c := NewClassifier(scriptedRouter(&scriptedProvider{}), 0.7, zap.NewNop())
	got := c.Classify(context.Background(), "skip this topic, actually let's stop altogether")
	if got.Intent != IntentEndInterview {
		t.Errorf("intent = %s, want end_interview to win over switch_topic", got.Intent)
	}
}

func TestClassifyOracleConfident(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{`{"intent": "switch_topic", "confidence": 0.9}`}}
	c := NewClassifier(scriptedRouter(oracle), 0.7, zap.NewNop())

	got := c.Classify(context.Background(), "hmm maybe we could do some other stuff instead")
	if got.Intent != IntentSwitchTopic || got.Source != "oracle" {
		t.Errorf("got %+v", got)
	}
	if oracle.callCount() != 1 {
		t.Errorf("calls = %d, want 1", oracle.callCount())
	}
}

func TestClassifyOracleLowConfidenceDefaultsToContinue(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{`{"intent": "end_interview", "confidence": 0.4}`}}
	c := NewClassifier(scriptedRouter(oracle), 0.7, zap.NewNop())

	got := c.Classify(context.Background(), "well, that's one way to put it")
	if got.Intent != IntentContinue {
		t.Errorf("intent = %s, want continue below the confidence gate", got.Intent)
	}
}

func TestClassifyOracleMalformedDefaultsToContinue(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{"I think they want to continue?"}}
	c := NewClassifier(scriptedRouter(oracle), 0.7, zap.NewNop())

	got := c.Classify(context.Background(), "interesting point about the weather")
	if got.Intent != IntentContinue {
		t.Errorf("intent = %s, want continue on malformed reply", got.Intent)
	}
}

func TestClassifyOracleUnknownIntentDefaultsToContinue(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{`{"intent": "order_pizza", "confidence": 0.99}`}}
	c := NewClassifier(scriptedRouter(oracle), 0.7, zap.NewNop())

	got := c.Classify(context.Background(), "something ambiguous")
	if got.Intent != IntentContinue {
		t.Errorf("intent = %s, want continue for unknown enum value", got.Intent)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Sure! ```json\n{\"a\":1}\n``` hope that helps", `{"a":1}`},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
