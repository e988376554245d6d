package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

const feedbackCaller = "feedback"

// Generator produces per-topic feedback and the end-of-session report.
type Generator struct {
	router         *provider.Router
	runtime        *agent.Runtime
	recTools       *agent.Registry
	poolSize       int
	reportTimeout  time.Duration
	recMaxSteps    int
	recMaxTime     time.Duration
	recStepTimeout time.Duration
	logger         *zap.Logger
}

// NewGenerator creates a feedback generator. recTools is the tool set for
// the recommendation agent (job-board search, review lookup, skill match);
// nil disables tool use but not recommendations.
func NewGenerator(router *provider.Router, runtime *agent.Runtime, recTools *agent.Registry, poolSize int, reportTimeout time.Duration, logger *zap.Logger) *Generator {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Generator{
		router:        router,
		runtime:       runtime,
		recTools:      recTools,
		poolSize:      poolSize,
		reportTimeout: reportTimeout,
		recMaxSteps:   5,
		logger:        logger,
	}
}

// SetAgentBounds overrides the recommendation agent's loop limits. A zero
// maxTime keeps the report timeout as the run budget.
func (g *Generator) SetAgentBounds(maxSteps int, maxTime, stepTimeout time.Duration) {
	if maxSteps > 0 {
		g.recMaxSteps = maxSteps
	}
	g.recMaxTime = maxTime
	g.recStepTimeout = stepTimeout
}

const topicFeedbackPrompt = `You are an interview coach. The candidate practiced the topic %q for the position %q.
Information collected:
%s
Conversation:
%s

Reply with one JSON object:
{"score": 1-10, "strengths": ["..."], "improvements": ["..."], "suggestion": "one concrete practice suggestion"}`

// ForTopic produces the feedback artifact for one sealed topic. A malformed
// or failed oracle reply yields a neutral default, never an error.
func (g *Generator) ForTopic(ctx context.Context, position string, topic *TopicContext) TopicFeedback {
	fallback := TopicFeedback{
		TopicName:    topic.Name,
		Score:        5,
		Strengths:    []string{"Engaged with the topic"},
		Improvements: []string{"Add more concrete detail to your answers"},
		Suggestion:   "Practice structuring answers as situation, action, result.",
	}

	system := fmt.Sprintf(topicFeedbackPrompt,
		topic.Name, position,
		renderInfoPoints(topic.CollectedInfo), renderTranscript(topic.Messages))

	resp, err := g.router.Route(ctx, feedbackCaller, &provider.ChatRequest{
		Messages:       []provider.Message{{Role: "system", Content: system}},
		MaxTokens:      512,
		ResponseFormat: provider.FormatJSON,
	})
	if err != nil {
		g.logger.Warn("topic feedback oracle failed, using default",
			zap.String("topic", topic.Name), zap.Error(err))
		return fallback
	}

	var out struct {
		Score        int      `json:"score"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
		Suggestion   string   `json:"suggestion"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &out); err != nil {
		g.logger.Warn("topic feedback reply malformed, using default",
			zap.String("topic", topic.Name))
		return fallback
	}

	fb := TopicFeedback{
		TopicName:    topic.Name,
		Score:        out.Score,
		Strengths:    out.Strengths,
		Improvements: out.Improvements,
		Suggestion:   out.Suggestion,
	}
	if fb.Score < 1 || fb.Score > 10 {
		fb.Score = 5
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = fallback.Strengths
	}
	if len(fb.Improvements) == 0 {
		fb.Improvements = fallback.Improvements
	}
	if fb.Suggestion == "" {
		fb.Suggestion = fallback.Suggestion
	}
	return fb
}

// Report assembles the end-of-session report. Per-topic feedback runs in a
// bounded worker pool; recommendation generation races a secondary timeout
// and degrades to a static list on expiry. The report never fails and the
// recommendation list is never empty.
func (g *Generator) Report(ctx context.Context, sess *PracticeSession) *SessionReport {
	return g.reportWith(ctx, sess, nil)
}

// ReportStream is Report with the recommendation agent's progress events
// fanned out to the emitter. The emitter closes after the agent's terminal
// event.
func (g *Generator) ReportStream(ctx context.Context, sess *PracticeSession, emit *agent.Emitter) *SessionReport {
	return g.reportWith(ctx, sess, emit)
}

func (g *Generator) reportWith(ctx context.Context, sess *PracticeSession, emit *agent.Emitter) *SessionReport {
	// Everything inside the report shares one deadline; a stalled oracle
	// degrades individual artifacts to their defaults instead of blowing
	// the report's SLA.
	ctx, cancel := context.WithTimeout(ctx, g.reportTimeout)
	defer cancel()

	have := make(map[string]bool)
	for _, fb := range sess.Feedbacks {
		have[fb.TopicName] = true
	}
	topics := make([]*TopicContext, 0, len(sess.CompletedTopics))
	for _, t := range sess.CompletedTopics {
		if !have[t.Name] {
			topics = append(topics, t)
		}
	}

	feedbacks := make([]TopicFeedback, len(topics))
	sem := make(chan struct{}, g.poolSize)
	var wg sync.WaitGroup
	for i, t := range topics {
		wg.Add(1)
		go func(i int, t *TopicContext) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			feedbacks[i] = g.ForTopic(ctx, sess.TargetPosition, t)
		}(i, t)
	}

	// The recommendation agent races the secondary timeout from launch, not
	// from when feedback finishes.
	recCh := make(chan []Recommendation, 1)
	recTimer := time.NewTimer(g.reportTimeout)
	defer recTimer.Stop()
	go func() {
		recCh <- g.recommend(ctx, sess, emit)
	}()

	wg.Wait()
	all := append(append([]TopicFeedback{}, sess.Feedbacks...), feedbacks...)

	var recs []Recommendation
	select {
	case recs = <-recCh:
	case <-recTimer.C:
		g.logger.Warn("recommendation generation exceeded report timeout, using fallback",
			zap.String("session", sess.ID), zap.Duration("timeout", g.reportTimeout))
	}
	if len(recs) == 0 {
		recs = fallbackRecommendations(sess.TargetPosition)
	}

	return &SessionReport{
		SessionID:       sess.ID,
		Feedbacks:       all,
		Recommendations: recs,
		Summary:         g.summarize(ctx, sess, all),
	}
}

type recInput struct {
	Position string
	Skills   []string
}

type recOutput struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// recommend runs the recommendation agent over the session's collected
// skills. Any failure returns nil; the caller substitutes the fallback.
func (g *Generator) recommend(ctx context.Context, sess *PracticeSession, emit *agent.Emitter) []Recommendation {
	if g.runtime == nil {
		emit.Close()
		return nil
	}

	skills := map[string]bool{}
	for _, t := range sess.CompletedTopics {
		for _, p := range t.CollectedInfo {
			if p.Type == InfoSkillClaim {
				skills[p.Summary] = true
			}
		}
	}
	input := recInput{Position: sess.TargetPosition}
	for s := range skills {
		input.Skills = append(input.Skills, s)
	}

	spec := &agent.Spec[recInput, recOutput]{
		Name: "recommender",
		BuildPrompt: func(in recInput) (string, string) {
			system := "You recommend jobs and practice directions for an interview candidate. Use your tools to look up real listings when available. Answer with a JSON object: {\"recommendations\": [{\"title\": \"...\", \"reason\": \"...\", \"url\": \"...\"}]}."
			user := fmt.Sprintf("Position: %s. Demonstrated skills: %s.", in.Position, strings.Join(in.Skills, ", "))
			return system, user
		},
		ParseOutput: func(text string, _ *agent.Trace) (*recOutput, bool) {
			var out recOutput
			if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil || len(out.Recommendations) == 0 {
				return nil, false
			}
			return &out, true
		},
		Reconstruct: reconstructRecommendations,
		Tools:       g.recTools,
		MaxSteps:    g.recMaxSteps,
		MaxTime:     g.runBudget(),
		StepTimeout: g.recStepTimeout,
	}

	res := agent.RunStream(ctx, g.runtime, spec, input, emit)
	if !res.Success {
		g.logger.Warn("recommendation agent produced no output",
			zap.String("session", sess.ID), zap.String("err", res.Err))
		return nil
	}
	return res.Output.Recommendations
}

// runBudget is the recommendation run's time budget. The report timeout
// still wins the race when the configured budget exceeds it.
func (g *Generator) runBudget() time.Duration {
	if g.recMaxTime > 0 {
		return g.recMaxTime
	}
	return g.reportTimeout
}

// reconstructRecommendations salvages listings from tool observations when
// the oracle never produced a parsable final answer.
func reconstructRecommendations(trace *agent.Trace) (*recOutput, bool) {
	var out recOutput
	for _, obs := range trace.Observations() {
		var tr struct {
			Data struct {
				Listings []Recommendation `json:"listings"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(obs), &tr); err == nil {
			out.Recommendations = append(out.Recommendations, tr.Data.Listings...)
		}
	}
	if len(out.Recommendations) == 0 {
		return nil, false
	}
	return &out, true
}

func fallbackRecommendations(position string) []Recommendation {
	return []Recommendation{
		{Title: "Practice another full session", Reason: fmt.Sprintf("Repetition on %s questions builds fluency under time pressure.", position)},
		{Title: "Write down your top three project stories", Reason: "Prepared stories with concrete metrics anchor most behavioral answers."},
		{Title: "Review role-specific fundamentals", Reason: fmt.Sprintf("Refresh the core concepts a %s interview is most likely to probe.", position)},
	}
}

// summarize writes the one-paragraph session summary, degrading to a
// computed line when the oracle is unavailable.
func (g *Generator) summarize(ctx context.Context, sess *PracticeSession, feedbacks []TopicFeedback) string {
	total := 0
	for _, fb := range feedbacks {
		total += fb.Score
	}
	avg := 0
	if len(feedbacks) > 0 {
		avg = total / len(feedbacks)
	}
	fallback := fmt.Sprintf("You practiced %d topic(s) for %s with an average score of %d/10.",
		len(sess.CompletedTopics), sess.TargetPosition, avg)

	names := make([]string, 0, len(feedbacks))
	for _, fb := range feedbacks {
		names = append(names, fmt.Sprintf("%s (%d/10)", fb.TopicName, fb.Score))
	}
	system := fmt.Sprintf(
		"Summarize an interview practice session for the position %q in one encouraging paragraph. Topics and scores: %s.",
		sess.TargetPosition, strings.Join(names, ", "))

	resp, err := g.router.Route(ctx, feedbackCaller, &provider.ChatRequest{
		Messages:  []provider.Message{{Role: "system", Content: system}},
		MaxTokens: 256,
	})
	if err != nil || resp.Content == "" {
		return fallback
	}
	return resp.Content
}
