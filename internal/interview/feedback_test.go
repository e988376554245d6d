package interview

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

func sealedSession() *PracticeSession {
	sess := NewPracticeSession("u1", "Backend Engineer")
	tc := NewTopicContext("Project Deep Dive", nil)
	tc.Append("user", "I built a payments service")
	tc.CollectedInfo = append(tc.CollectedInfo, CollectedInfoPoint{
		Type: InfoSkillClaim, Summary: "Go services", Depth: 3,
	})
	sess.StartTopic(tc)
	sess.SealCurrentTopic(StatusCollected)
	return sess
}

func TestForTopicParsesOracle(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{
		`{"score": 8, "strengths": ["clear structure"], "improvements": ["more metrics"], "suggestion": "quantify impact"}`,
	}}
	g := NewGenerator(scriptedRouter(oracle), nil, nil, 2, time.Second, zap.NewNop())

	fb := g.ForTopic(context.Background(), "Backend Engineer", sealedSession().CompletedTopics[0])
	if fb.Score != 8 || fb.Suggestion != "quantify impact" {
		t.Errorf("feedback = %+v", fb)
	}
	if fb.TopicName != "Project Deep Dive" {
		t.Errorf("topic name = %q", fb.TopicName)
	}
}

func TestForTopicMalformedUsesDefault(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{"they did fine I guess"}}
	g := NewGenerator(scriptedRouter(oracle), nil, nil, 2, time.Second, zap.NewNop())

	fb := g.ForTopic(context.Background(), "Backend Engineer", sealedSession().CompletedTopics[0])
	if fb.Score != 5 || len(fb.Strengths) == 0 || len(fb.Improvements) == 0 || fb.Suggestion == "" {
		t.Errorf("default feedback incomplete: %+v", fb)
	}
}

func TestForTopicScoreClamped(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{
		`{"score": 42, "strengths": ["x"], "improvements": ["y"], "suggestion": "z"}`,
	}}
	g := NewGenerator(scriptedRouter(oracle), nil, nil, 2, time.Second, zap.NewNop())

	fb := g.ForTopic(context.Background(), "Backend Engineer", sealedSession().CompletedTopics[0])
	if fb.Score != 5 {
		t.Errorf("score = %d, want out-of-range replaced", fb.Score)
	}
}

// slowProvider blocks until its context expires.
type slowProvider struct{ scriptedProvider }

func (s *slowProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return &provider.ChatResponse{Content: "too late"}, nil
	}
}

func TestReportRecommendationTimeoutFallback(t *testing.T) {
	// Recommendation generation stalls; the report must still come back with
	// a non-empty recommendation list inside the secondary timeout.
	slow := &slowProvider{}
	router := scriptedRouter(slow)
	rt := agent.NewRuntime(router, zap.NewNop())
	g := NewGenerator(router, rt, nil, 2, 100*time.Millisecond, zap.NewNop())

	sess := sealedSession()
	start := time.Now()
	report := g.Report(context.Background(), sess)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("report took %v, should be bounded by the secondary timeout", elapsed)
	}
	if len(report.Recommendations) == 0 {
		t.Fatal("recommendations must never be empty")
	}
	if report.Summary == "" {
		t.Error("summary must never be empty")
	}
}

func TestReportReusesSealTimeFeedback(t *testing.T) {
	oracle := &scriptedProvider{replies: []string{
		// One summarize call only; no per-topic feedback regenerated.
		"Strong session overall.",
	}}
	g := NewGenerator(scriptedRouter(oracle), nil, nil, 2, time.Second, zap.NewNop())

	sess := sealedSession()
	sess.Feedbacks = []TopicFeedback{{TopicName: "Project Deep Dive", Score: 7}}

	report := g.Report(context.Background(), sess)
	if len(report.Feedbacks) != 1 {
		t.Fatalf("feedbacks = %d, want 1", len(report.Feedbacks))
	}
	if report.Feedbacks[0].Score != 7 {
		t.Errorf("existing feedback must be reused, got %+v", report.Feedbacks[0])
	}
}

func TestSetAgentBounds(t *testing.T) {
	g := NewGenerator(nil, nil, nil, 2, 8*time.Second, zap.NewNop())
	if g.runBudget() != 8*time.Second {
		t.Errorf("default run budget = %v, want the report timeout", g.runBudget())
	}

	g.SetAgentBounds(3, 30*time.Second, 5*time.Second)
	if g.recMaxSteps != 3 || g.recStepTimeout != 5*time.Second {
		t.Errorf("bounds = steps %d stepTimeout %v", g.recMaxSteps, g.recStepTimeout)
	}
	if g.runBudget() != 30*time.Second {
		t.Errorf("run budget = %v, want the configured max time", g.runBudget())
	}

	g.SetAgentBounds(0, 0, 0)
	if g.recMaxSteps != 3 {
		t.Error("zero steps must not clear the step bound")
	}
	if g.runBudget() != 8*time.Second {
		t.Errorf("run budget = %v, want the report timeout again", g.runBudget())
	}
}

func TestReconstructRecommendations(t *testing.T) {
	trace := &agent.Trace{Steps: []agent.ThoughtStep{
		{Observation: `{"success":true,"data":{"listings":[{"title":"Backend Engineer at Acme","reason":"matches Go experience"}]}}`},
		{Observation: "not json"},
	}}
	out, ok := reconstructRecommendations(trace)
	if !ok || len(out.Recommendations) != 1 {
		t.Fatalf("out = %+v ok = %v", out, ok)
	}
	if out.Recommendations[0].Title != "Backend Engineer at Acme" {
		t.Errorf("title = %q", out.Recommendations[0].Title)
	}
}

func TestFallbackRecommendationsNonEmpty(t *testing.T) {
	recs := fallbackRecommendations("Data Engineer")
	if len(recs) == 0 {
		t.Fatal("fallback recommendations must never be empty")
	}
	for _, r := range recs {
		if r.Title == "" || r.Reason == "" {
			t.Errorf("incomplete recommendation: %+v", r)
		}
	}
}
