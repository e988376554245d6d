package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

// Force-end reason codes. Time limit always beats topic completeness: time
// is a hard external constraint, completeness is a model judgment.
const (
	ReasonTimeLimit     = "time_limit"
	ReasonTopicComplete = "topic_complete"
	ReasonUserRequested = "user_requested"
	ReasonSwitchTopic   = "switch_topic"
)

// StepResult is the outcome of processing one user message against the
// active topic.
type StepResult struct {
	Status         TopicStatus
	NewInfoPoints  []CollectedInfoPoint
	Response       string
	Intent         IntentResult
	ForceEnd       bool
	ForceEndReason string
}

// Machine is the per-message transition function over a session's active
// topic. It owns all appends to the topic's messages and collected info;
// callers handle topic sealing and succession.
type Machine struct {
	router        *provider.Router
	classifier    *Classifier
	timeLimit     time.Duration
	turnThreshold int
	logger        *zap.Logger
}

// NewMachine creates a state machine with the given hard and soft limits.
func NewMachine(router *provider.Router, classifier *Classifier, timeLimit time.Duration, turnThreshold int, logger *zap.Logger) *Machine {
	return &Machine{
		router:        router,
		classifier:    classifier,
		timeLimit:     timeLimit,
		turnThreshold: turnThreshold,
		logger:        logger,
	}
}

const interviewerCaller = "interviewer"

// Step processes one user message. Checks run in fixed order: the time
// limit first (no oracle needed), then the rule tier of the intent
// cascade, then one combined oracle call that carries assessment,
// extraction, the follow-up, and the oracle tier of the cascade. A normal
// conversational turn costs exactly one oracle round trip.
func (m *Machine) Step(ctx context.Context, sess *PracticeSession, userMessage string) (*StepResult, error) {
	topic := sess.CurrentTopic
	if topic == nil {
		return nil, fmt.Errorf("session %s has no active topic", sess.ID)
	}
	topic.Append("user", userMessage)

	if time.Since(topic.StartedAt) >= m.timeLimit {
		response := fmt.Sprintf("We've spent a good while on %s, so let's wrap this topic up here. You covered solid ground.", topic.Name)
		topic.Append("assistant", response)
		return &StepResult{
			Status:         StatusCollected,
			Response:       response,
			Intent:         IntentResult{Intent: IntentContinue, Confidence: 1.0, Source: "rule"},
			ForceEnd:       true,
			ForceEndReason: ReasonTimeLimit,
		}, nil
	}

	intent, matched := m.classifier.Rules(userMessage)
	if matched {
		if res, ok := m.controlled(topic, intent); ok {
			return res, nil
		}
		// Remaining rule intents are the adjustment family.
		response := m.adjustedReply(ctx, topic, intent.Intent, userMessage)
		topic.Append("assistant", response)
		return &StepResult{Status: StatusCollecting, Response: response, Intent: intent}, nil
	}

	assessment := m.assess(ctx, sess, topic)
	intent = assessment.Intent
	if res, ok := m.controlled(topic, intent); ok {
		return res, nil
	}

	topic.CollectedInfo = append(topic.CollectedInfo, assessment.InfoPoints...)
	topic.Append("assistant", assessment.FollowUp)

	res := &StepResult{
		Status:        StatusCollecting,
		NewInfoPoints: assessment.InfoPoints,
		Response:      assessment.FollowUp,
		Intent:        intent,
	}

	if assessment.Status == StatusCollected {
		res.Status = StatusCollected
		res.ForceEnd = true
		res.ForceEndReason = ReasonTopicComplete
		return res, nil
	}
	if assessment.Status == StatusAbandoned {
		res.Status = StatusAbandoned
		res.ForceEnd = true
		res.ForceEndReason = ReasonTopicComplete
		return res, nil
	}

	if topic.UserTurns() >= m.turnThreshold && assessment.Engagement == "high" {
		res.Status = StatusEngaged
	}
	return res, nil
}

// controlled handles the session-control intents, from either cascade
// tier. Adjustment and continue intents fall through to the caller.
func (m *Machine) controlled(topic *TopicContext, intent IntentResult) (*StepResult, bool) {
	switch intent.Intent {
	case IntentEndInterview:
		status := StatusAbandoned
		if len(topic.CollectedInfo) > 0 {
			status = StatusCollected
		}
		response := "Understood, let's stop here. I'll pull your feedback together."
		topic.Append("assistant", response)
		return &StepResult{
			Status: status, Response: response, Intent: intent,
			ForceEnd: true, ForceEndReason: ReasonUserRequested,
		}, true
	case IntentSwitchTopic:
		response := "Sure, let's move to a different topic."
		topic.Append("assistant", response)
		return &StepResult{
			Status: StatusAbandoned, Response: response, Intent: intent,
			ForceEnd: true, ForceEndReason: ReasonSwitchTopic,
		}, true
	case IntentViewFeedback:
		// The caller assembles the feedback view; the topic stays open.
		return &StepResult{Status: topic.Status, Intent: intent}, true
	}
	return nil, false
}

// assessment is the combined oracle verdict for one turn.
type assessment struct {
	Intent     IntentResult
	Status     TopicStatus
	Engagement string
	InfoPoints []CollectedInfoPoint
	FollowUp   string
}

const assessPrompt = `You are an experienced interviewer running a practice session for the position: %s.
Current topic: %s (target skills: %v).
Information collected so far:
%s
Conversation so far:
%s

Assess the candidate's latest answer and reply with one JSON object:
{
  "intent": "continue" for a normal answer; "end_interview", "switch_topic" or "view_feedback" only when the message clearly asks for that,
  "intent_confidence": 0.0-1.0,
  "status": "collecting" or "collected" (collected only when the topic is fully explored) or "abandoned" (only when the candidate clearly cannot or will not engage with this topic),
  "engagement": "low", "medium" or "high",
  "info_points": [{"type": "skill_claim|project_experience|quantified_result|challenge_solution|learning|other", "summary": "...", "depth": 1-5, "needs_follow_up": true|false}],
  "follow_up": "your next interviewer message to the candidate"
}`

// assess issues the single combined oracle call for intent, status,
// extraction, and the follow-up question. Malformed replies degrade to
// safe defaults; the user always gets a conversational response.
func (m *Machine) assess(ctx context.Context, sess *PracticeSession, topic *TopicContext) assessment {
	fallback := assessment{
		Intent:     IntentResult{Intent: IntentContinue, Source: "oracle"},
		Status:     StatusCollecting,
		Engagement: "medium",
		FollowUp:   "Interesting. Could you walk me through that in a bit more detail?",
	}

	system := fmt.Sprintf(assessPrompt,
		sess.TargetPosition, topic.Name, topic.TargetSkills,
		renderInfoPoints(topic.CollectedInfo), renderTranscript(topic.Messages))

	resp, err := m.router.Route(ctx, interviewerCaller, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Produce the assessment object."},
		},
		MaxTokens:      1024,
		ResponseFormat: provider.FormatJSON,
	})
	if err != nil {
		m.logger.Warn("assessment oracle failed, using defaults",
			zap.String("session", sess.ID), zap.Error(err))
		return fallback
	}

	var out struct {
		Intent           Intent               `json:"intent"`
		IntentConfidence float64              `json:"intent_confidence"`
		Status           string               `json:"status"`
		Engagement       string               `json:"engagement"`
		InfoPoints       []CollectedInfoPoint `json:"info_points"`
		FollowUp         string               `json:"follow_up"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &out); err != nil {
		m.logger.Warn("assessment reply malformed, using defaults",
			zap.String("session", sess.ID))
		return fallback
	}

	a := fallback
	a.Intent = m.classifier.Resolve(out.Intent, out.IntentConfidence)
	switch TopicStatus(out.Status) {
	case StatusCollecting, StatusCollected, StatusAbandoned:
		a.Status = TopicStatus(out.Status)
	}
	switch out.Engagement {
	case "low", "medium", "high":
		a.Engagement = out.Engagement
	}
	a.InfoPoints = sanitizeInfoPoints(out.InfoPoints)
	if out.FollowUp != "" {
		a.FollowUp = out.FollowUp
	}
	return a
}

func sanitizeInfoPoints(points []CollectedInfoPoint) []CollectedInfoPoint {
	valid := map[InfoType]bool{
		InfoSkillClaim: true, InfoProjectExperience: true, InfoQuantifiedResult: true,
		InfoChallengeSolution: true, InfoLearning: true, InfoOther: true,
	}
	out := make([]CollectedInfoPoint, 0, len(points))
	for _, p := range points {
		if p.Summary == "" {
			continue
		}
		if !valid[p.Type] {
			p.Type = InfoOther
		}
		if p.Depth < 1 {
			p.Depth = 1
		}
		if p.Depth > 5 {
			p.Depth = 5
		}
		out = append(out, p)
	}
	return out
}

var adjustedFallbacks = map[Intent]string{
	IntentNeedHint:     "Here's a nudge: think about a concrete situation where you applied this, and describe what you did step by step.",
	IntentWantEasier:   "No problem. Let's simplify: tell me about one project you enjoyed working on and what your role was.",
	IntentWantHarder:   "Alright, let's raise the bar: what was the most technically difficult tradeoff you made in this area, and why?",
	IntentWantSpecific: "Happy to focus there. Tell me about your hands-on experience with it.",
}

// adjustedReply produces a hint or a re-pitched question. One light oracle
// call with a canned fallback.
func (m *Machine) adjustedReply(ctx context.Context, topic *TopicContext, intent Intent, userMessage string) string {
	system := fmt.Sprintf(
		"You are an interviewer on the topic %q. The candidate asked: %s. Their request type is %s. Reply with a single conversational interviewer message honoring the request.",
		topic.Name, userMessage, intent)

	resp, err := m.router.Route(ctx, interviewerCaller, &provider.ChatRequest{
		Messages:  []provider.Message{{Role: "system", Content: system}},
		MaxTokens: 256,
	})
	if err != nil || resp.Content == "" {
		return adjustedFallbacks[intent]
	}
	return resp.Content
}
