package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

// scriptedProvider replays a fixed sequence of replies, one per Chat call.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (s *scriptedProvider) ID() string   { return "scripted" }
func (s *scriptedProvider) Name() string { return "Scripted" }

func (s *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := ""
	if s.calls < len(s.replies) {
		reply = s.replies[s.calls]
	}
	s.calls++
	return &provider.ChatResponse{Content: reply}, nil
}

func (s *scriptedProvider) ChatStream(ctx context.Context, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	ch := make(chan *provider.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *scriptedProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}

func (s *scriptedProvider) HealthCheck(ctx context.Context) error { return nil }

func scriptedRuntime(replies ...string) *Runtime {
	router := provider.NewRouter(zap.NewNop())
	router.Register(&scriptedProvider{replies: replies})
	return NewRuntime(router, zap.NewNop())
}

type probeOutput struct {
	Verdict string `json:"verdict"`
}

func probeSpec(tools *Registry) *Spec[string, probeOutput] {
	return &Spec[string, probeOutput]{
		Name: "probe",
		BuildPrompt: func(in string) (string, string) {
			return "You are a probe.", in
		},
		ParseOutput: func(text string, _ *Trace) (*probeOutput, bool) {
			var out probeOutput
			if err := json.Unmarshal([]byte(text), &out); err != nil {
				return nil, false
			}
			return &out, true
		},
		Tools:    tools,
		MaxSteps: 5,
		MaxTime:  5 * time.Second,
	}
}

func TestRunFinalAnswerFirstStep(t *testing.T) {
	rt := scriptedRuntime(`Thought: easy
Final Answer: {"verdict": "pass"}`)

	res := Run(context.Background(), rt, probeSpec(nil), "grade this")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Err)
	}
	if res.Output == nil || res.Output.Verdict != "pass" {
		t.Errorf("output = %+v", res.Output)
	}
	if len(res.Trace.Steps) != 1 {
		t.Errorf("steps = %d, want 1", len(res.Trace.Steps))
	}
	if res.Trace.EarlyStop {
		t.Error("clean finish should not be an early stop")
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	reg := NewRegistry()
	var gotParams map[string]interface{}
	reg.Register(&Tool{
		Name:        "lookup",
		Description: "Looks up a record.",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			gotParams = params
			return map[string]string{"record": "found"}, nil
		},
	})
	rt := scriptedRuntime(
		"Thought: need data\nAction: lookup\nAction Input: {\"id\": \"r1\"}",
		`Thought: got it
Final Answer: {"verdict": "pass"}`,
	)

	res := Run(context.Background(), rt, probeSpec(reg), "go")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Err)
	}
	if gotParams["id"] != "r1" {
		t.Errorf("tool params = %v", gotParams)
	}
	if len(res.Trace.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(res.Trace.Steps))
	}
	first := res.Trace.Steps[0]
	if first.Action == nil || first.Action.Tool != "lookup" {
		t.Errorf("step 1 action = %+v", first.Action)
	}
	if !strings.Contains(first.Observation, "found") {
		t.Errorf("observation = %q", first.Observation)
	}
}

func TestRunToolFailureContinuesLoop(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name: "explode",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	})
	rt := scriptedRuntime(
		"Thought: try it\nAction: explode\nAction Input: {}",
		`Final Answer: {"verdict": "recovered"}`,
	)

	res := Run(context.Background(), rt, probeSpec(reg), "go")
	if !res.Success {
		t.Fatalf("tool panic must not abort the run: %s", res.Err)
	}
	if res.Output.Verdict != "recovered" {
		t.Errorf("output = %+v", res.Output)
	}
	if !strings.Contains(res.Trace.Steps[0].Observation, "boom") {
		t.Errorf("observation = %q", res.Trace.Steps[0].Observation)
	}
}

func TestRunMaxStepsCap(t *testing.T) {
	// Every reply is a bare thought, so the loop can only run out of steps.
	rt := scriptedRuntime(
		"still thinking", "still thinking", "still thinking",
		"still thinking", "still thinking", "still thinking",
	)
	spec := probeSpec(nil)
	spec.MaxSteps = 3

	res := Run(context.Background(), rt, spec, "go")
	if res.Success {
		t.Fatal("expected failure without a parsable answer")
	}
	if len(res.Trace.Steps) != 3 {
		t.Errorf("steps = %d, want 3", len(res.Trace.Steps))
	}
	if !res.Trace.EarlyStop || res.Trace.EarlyStopReason != StopMaxSteps {
		t.Errorf("early stop = %v reason = %q", res.Trace.EarlyStop, res.Trace.EarlyStopReason)
	}
}

func TestRunBudgetBlocksTool(t *testing.T) {
	reg := NewRegistry()
	executed := false
	reg.Register(&Tool{
		Name:          "expensive",
		EstimatedTime: time.Hour,
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			executed = true
			return nil, nil
		},
	})
	rt := scriptedRuntime("Thought: go big\nAction: expensive\nAction Input: {}")

	res := Run(context.Background(), rt, probeSpec(reg), "go")
	if executed {
		t.Fatal("tool beyond the remaining budget must never start")
	}
	if res.Success {
		t.Fatal("expected degraded result")
	}
	if res.Trace.EarlyStopReason != StopBudgetExhausted {
		t.Errorf("reason = %q", res.Trace.EarlyStopReason)
	}
}

func TestRunOracleFailure(t *testing.T) {
	// No replies scripted: the provider returns empty content.
	rt := scriptedRuntime()

	res := Run(context.Background(), rt, probeSpec(nil), "go")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Trace.EarlyStopReason != StopOracleFailure {
		t.Errorf("reason = %q", res.Trace.EarlyStopReason)
	}
}

func TestRunReconstructFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name: "lookup",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "partial data", nil
		},
	})
	// The oracle gathers an observation, then dies.
	rt := scriptedRuntime("Thought: fetch\nAction: lookup\nAction Input: {}")

	spec := probeSpec(reg)
	spec.Reconstruct = func(trace *Trace) (*probeOutput, bool) {
		if len(trace.Observations()) == 0 {
			return nil, false
		}
		return &probeOutput{Verdict: "reconstructed"}, true
	}

	res := Run(context.Background(), rt, spec, "go")
	if !res.Success {
		t.Fatalf("expected reconstruction to salvage the run: %s", res.Err)
	}
	if res.Output.Verdict != "reconstructed" {
		t.Errorf("output = %+v", res.Output)
	}
	if !res.Trace.EarlyStop {
		t.Error("salvaged run should still record the early stop")
	}
}

func TestRunResultConsistency(t *testing.T) {
	rt := scriptedRuntime("Final Answer: not json at all")
	res := Run(context.Background(), rt, probeSpec(nil), "go")
	if res.Success {
		t.Fatal("unparsable answer must fail")
	}
	if res.Output != nil {
		t.Error("failed result must carry no output")
	}
	if res.Err == "" {
		t.Error("failed result must carry an error message")
	}
}

func TestRunStreamEventOrdering(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name: "lookup",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	})
	rt := scriptedRuntime(
		"Thought: fetch\nAction: lookup\nAction Input: {}",
		`Final Answer: {"verdict": "pass"}`,
	)

	emit := NewEmitter("probe")
	ch := emit.Subscribe(64)
	done := make(chan *Result[probeOutput], 1)
	go func() {
		done <- RunStream(context.Background(), rt, probeSpec(reg), "go", emit)
	}()

	var types []EventType
	for ev := range ch {
		types = append(types, ev.Type)
	}
	res := <-done
	if !res.Success {
		t.Fatalf("run failed: %s", res.Err)
	}

	want := []EventType{
		EventAgentStart,
		EventStepStart, EventThought, EventActionStart, EventActionComplete, EventStepComplete,
		EventStepStart, EventThought, EventStepComplete,
		EventAgentComplete,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(types), types, len(want))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestRunStreamClosesAfterTerminalEvent(t *testing.T) {
	rt := scriptedRuntime(`Final Answer: {"verdict": "pass"}`)
	emit := NewEmitter("probe")
	ch := emit.Subscribe(16)

	RunStream(context.Background(), rt, probeSpec(nil), "go", emit)

	var last EventType
	for ev := range ch {
		last = ev.Type
	}
	if last != EventAgentComplete {
		t.Errorf("last event = %s, want %s", last, EventAgentComplete)
	}
}

func TestRunGrading(t *testing.T) {
	rt := scriptedRuntime(`Final Answer: {"verdict": "pass"}`)
	spec := probeSpec(nil)
	spec.Grader = ThresholdGrader{
		Min: 0.5,
		Score: func(text string) (float64, []string) {
			return 0.9, []string{"complete"}
		},
	}

	res := Run(context.Background(), rt, spec, "go")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Err)
	}
	if res.Grade == nil || !res.Grade.Pass || res.Grade.Score != 0.9 {
		t.Errorf("grade = %+v", res.Grade)
	}
}
