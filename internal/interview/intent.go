package interview

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentContinue     Intent = "continue"
	IntentEndInterview Intent = "end_interview"
	IntentSwitchTopic  Intent = "switch_topic"
	IntentNeedHint     Intent = "need_hint"
	IntentWantEasier   Intent = "want_easier"
	IntentWantHarder   Intent = "want_harder"
	IntentWantSpecific Intent = "want_specific"
	IntentViewFeedback Intent = "view_feedback"
)

// IntentResult is the output of the classifier cascade.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // rule or oracle
}

// intentRules are tier-1 deterministic phrase sets, evaluated in this order
// so overlapping keywords resolve the same way every time. End beats switch:
// "end this topic and the interview" must stop the session, not skip ahead.
var intentRules = []struct {
	intent  Intent
	phrases []string
}{
	{IntentEndInterview, []string{
		"end the interview", "end this interview", "stop the interview",
		"finish the interview", "i want to end", "i'm done", "im done",
		"let's stop", "lets stop", "quit the interview", "wrap up the interview",
	}},
	{IntentSwitchTopic, []string{
		"switch topic", "change topic", "next topic", "different topic",
		"skip this topic", "move on to", "another question", "next question",
	}},
	{IntentViewFeedback, []string{
		"show my feedback", "view feedback", "see my feedback", "how am i doing",
		"how did i do",
	}},
	{IntentNeedHint, []string{
		"give me a hint", "need a hint", "can you give me a hint", "i'm stuck",
		"im stuck", "not sure how to answer", "help me answer",
	}},
	{IntentWantEasier, []string{
		"easier question", "too hard", "too difficult", "simpler question",
		"something easier",
	}},
	{IntentWantHarder, []string{
		"harder question", "too easy", "more challenging", "something harder",
		"more difficult question",
	}},
	{IntentWantSpecific, []string{
		"ask me about", "can we talk about", "i want to practice", "focus on",
	}},
}

const classifierCaller = "intent-classifier"

const classifierPrompt = `You classify one message from a job-interview practice session.
Return a JSON object: {"intent": "<one of: continue, end_interview, switch_topic, need_hint, want_easier, want_harder, want_specific, view_feedback>", "confidence": <0.0-1.0>}.
Strongly prefer "continue" unless the evidence is unambiguous. Casual remarks, partial answers, and questions about the topic itself are all "continue".`

// Classifier is the two-tier intent cascade: deterministic phrase rules
// first, an oracle verdict only when no rule matches. The state machine
// folds the oracle tier into its combined assessment call and applies the
// gate through Resolve; Classify runs the full cascade standalone.
type Classifier struct {
	router *provider.Router
	gate   float64
	logger *zap.Logger
}

// NewClassifier creates a classifier. Oracle verdicts below the confidence
// gate fall back to continue.
func NewClassifier(router *provider.Router, gate float64, logger *zap.Logger) *Classifier {
	return &Classifier{router: router, gate: gate, logger: logger}
}

// Classify resolves the intent of one user message. Rule matches are
// near-zero latency and never touch the oracle.
func (c *Classifier) Classify(ctx context.Context, message string) IntentResult {
	if intent, ok := c.Rules(message); ok {
		return intent
	}
	return c.classifyOracle(ctx, message)
}

// Rules runs only the deterministic tier. The second return reports
// whether any rule matched.
func (c *Classifier) Rules(message string) (IntentResult, bool) {
	if intent, ok := matchRules(message); ok {
		return IntentResult{Intent: intent, Confidence: 1.0, Source: "rule"}, true
	}
	return IntentResult{Intent: IntentContinue, Source: "rule"}, false
}

// Resolve applies the confidence gate to an oracle-reported intent.
// Unknown intents and verdicts at or below the gate default to continue.
func (c *Classifier) Resolve(intent Intent, confidence float64) IntentResult {
	if !knownIntents[intent] || confidence <= c.gate {
		return IntentResult{Intent: IntentContinue, Confidence: confidence, Source: "oracle"}
	}
	return IntentResult{Intent: intent, Confidence: confidence, Source: "oracle"}
}

func matchRules(message string) (Intent, bool) {
	lower := strings.ToLower(message)
	for _, rule := range intentRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.intent, true
			}
		}
	}
	return "", false
}

var knownIntents = map[Intent]bool{
	IntentContinue: true, IntentEndInterview: true, IntentSwitchTopic: true,
	IntentNeedHint: true, IntentWantEasier: true, IntentWantHarder: true,
	IntentWantSpecific: true, IntentViewFeedback: true,
}

func (c *Classifier) classifyOracle(ctx context.Context, message string) IntentResult {
	fallback := IntentResult{Intent: IntentContinue, Confidence: 0, Source: "oracle"}

	resp, err := c.router.Route(ctx, classifierCaller, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: message},
		},
		MaxTokens:      128,
		ResponseFormat: provider.FormatJSON,
	})
	if err != nil {
		c.logger.Warn("intent oracle failed, defaulting to continue", zap.Error(err))
		return fallback
	}

	var out struct {
		Intent     Intent  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &out); err != nil {
		c.logger.Warn("intent oracle returned malformed reply",
			zap.String("content", resp.Content))
		return fallback
	}
	return c.Resolve(out.Intent, out.Confidence)
}

// extractJSON trims prose and code fences around a JSON object. Providers
// without an enforced JSON mode still wrap objects in markdown.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			return text[i : j+1]
		}
	}
	return text
}
