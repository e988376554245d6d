package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

// Early-stop reason codes recorded on the trace.
const (
	StopOracleFailure   = "oracle_failure"
	StopBudgetExhausted = "budget_exhausted"
	StopMaxSteps        = "max_steps"
	StopTimeLimit       = "time_limit"
)

const (
	defaultMaxSteps      = 8
	defaultMaxTime       = 60 * time.Second
	defaultStepTimeout   = 20 * time.Second
	defaultEstimatedTool = 2 * time.Second
	maxObservationChars  = 2000
)

// Spec bundles the capabilities that differentiate one agent from another:
// prompt construction, output parsing, and the declared tool set. Agents are
// capability bundles, not subclasses.
type Spec[I, O any] struct {
	Name string

	// BuildPrompt renders the system and user prompts for the input.
	BuildPrompt func(input I) (system, user string)
	// ParseOutput converts the final text into the typed output.
	ParseOutput func(finalText string, trace *Trace) (*O, bool)
	// Reconstruct, when set, assembles a best-effort output from the trace's
	// observations after ParseOutput fails.
	Reconstruct func(trace *Trace) (*O, bool)

	Tools  *Registry
	Grader Grader

	Model       string
	MaxSteps    int
	MaxTime     time.Duration
	StepTimeout time.Duration
}

func (s *Spec[I, O]) maxSteps() int {
	if s.MaxSteps <= 0 {
		return defaultMaxSteps
	}
	return s.MaxSteps
}

func (s *Spec[I, O]) maxTime() time.Duration {
	if s.MaxTime <= 0 {
		return defaultMaxTime
	}
	return s.MaxTime
}

func (s *Spec[I, O]) stepTimeout() time.Duration {
	if s.StepTimeout <= 0 {
		return defaultStepTimeout
	}
	return s.StepTimeout
}

// Runtime carries the shared dependencies for agent runs.
type Runtime struct {
	router *provider.Router
	logger *zap.Logger
}

// NewRuntime creates a runtime over the provider router.
func NewRuntime(router *provider.Router, logger *zap.Logger) *Runtime {
	return &Runtime{router: router, logger: logger}
}

const grammarInstructions = `Respond in the following format.

To use a tool:
Thought: your reasoning about what to do next
Action: tool_name
Action Input: {"param": "value"}

When you can answer:
Thought: your reasoning
Final Answer: your complete answer

Use exactly one Action or one Final Answer per reply.`

// Run executes the reasoning loop without an observer.
func Run[I, O any](ctx context.Context, rt *Runtime, spec *Spec[I, O], input I) *Result[O] {
	return RunStream(ctx, rt, spec, input, nil)
}

// RunStream executes the bounded reasoning loop, emitting progress events.
// The loop is strictly sequential: each step awaits one oracle call and at
// most one tool call, because every step's prompt depends on the previous
// step's observation. The emitter, when non-nil, is closed after the
// terminal event.
//
// Guarantees: never more than MaxSteps steps; never blocks past the time
// budget by more than one in-flight oracle call; a tool failure is recorded
// as an observation and does not abort the loop; budget exhaustion yields a
// degraded result, not an error.
func RunStream[I, O any](ctx context.Context, rt *Runtime, spec *Spec[I, O], input I, emit *Emitter) *Result[O] {
	budget := NewBudget(spec.maxTime())
	executor := NewToolExecutor(spec.Tools, rt.logger)

	trace := &Trace{ID: uuid.New().String(), Agent: spec.Name}
	defer func() {
		trace.TotalTimeMs = budget.Elapsed().Milliseconds()
	}()

	system, user := spec.BuildPrompt(input)
	if tools := spec.Tools.Describe(); tools != "" {
		system += "\n\nAvailable tools:\n" + tools
	}
	system += "\n\n" + grammarInstructions

	messages := []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	emit.Emit(EventAgentStart, 0, map[string]interface{}{"trace_id": trace.ID})
	defer emit.Close()

	nudgedFinish := false
	maxSteps := spec.maxSteps()

	for step := 1; step <= maxSteps && !budget.Expired(); step++ {
		emit.Emit(EventStepStart, step, nil)

		// Bias toward a degraded-but-present answer over a hard timeout.
		if budget.NearTimeout() && !nudgedFinish {
			nudgedFinish = true
			messages = append(messages, provider.Message{
				Role:    "user",
				Content: "Time is nearly up. Give your Final Answer now with what you have.",
			})
		}

		stepCtx, cancel := budget.StepContext(ctx, spec.stepTimeout())
		resp, err := rt.router.Route(stepCtx, spec.Name, &provider.ChatRequest{
			Model:     spec.Model,
			Messages:  messages,
			MaxTokens: 1024,
		})
		cancel()
		if err != nil || strings.TrimSpace(resp.Content) == "" {
			trace.EarlyStop = true
			trace.EarlyStopReason = StopOracleFailure
			msg := "empty oracle response"
			if err != nil {
				msg = err.Error()
			}
			rt.logger.Warn("oracle call failed",
				zap.String("agent", spec.Name), zap.Int("step", step), zap.String("reason", msg))
			emit.Emit(EventError, step, map[string]interface{}{"error": msg})
			break
		}

		parsed := ParseStep(resp.Content)
		rec := ThoughtStep{Step: step, Thought: parsed.Thought}
		emit.Emit(EventThought, step, map[string]interface{}{"thought": parsed.Thought})

		messages = append(messages, provider.Message{Role: "assistant", Content: resp.Content})

		// An explicit final answer always wins over an action.
		if parsed.IsFinal {
			trace.FinalAnswer = parsed.FinalAnswer
			rec.ElapsedMs = budget.Elapsed().Milliseconds()
			trace.Steps = append(trace.Steps, rec)
			emit.Emit(EventStepComplete, step, nil)
			break
		}

		if parsed.Action != nil {
			est := defaultEstimatedTool
			if tool, ok := spec.Tools.Get(parsed.Action.Tool); ok && tool.EstimatedTime > 0 {
				est = tool.EstimatedTime
			}
			// Admission control: never start a tool the budget cannot
			// plausibly absorb.
			if !budget.HasTimeFor(est) {
				trace.EarlyStop = true
				trace.EarlyStopReason = StopBudgetExhausted
				rec.ElapsedMs = budget.Elapsed().Milliseconds()
				trace.Steps = append(trace.Steps, rec)
				emit.Emit(EventStepComplete, step, nil)
				break
			}

			emit.Emit(EventActionStart, step, map[string]interface{}{
				"tool": parsed.Action.Tool, "params": parsed.Action.Params,
			})
			toolRes := executor.Execute(ctx, parsed.Action.Tool, parsed.Action.Params)
			observation := formatObservation(toolRes)

			rec.Action = parsed.Action
			rec.Observation = observation
			messages = append(messages, provider.Message{
				Role:    "user",
				Content: "Observation: " + observation,
			})
			emit.Emit(EventActionComplete, step, map[string]interface{}{
				"tool": parsed.Action.Tool, "success": toolRes.Success, "execution_ms": toolRes.ExecutionMs,
			})
		} else {
			// Neither final nor actionable: nudge instead of stalling.
			messages = append(messages, provider.Message{
				Role:    "user",
				Content: "Continue. Use a tool with Action/Action Input, or give your Final Answer.",
			})
		}

		rec.ElapsedMs = budget.Elapsed().Milliseconds()
		trace.Steps = append(trace.Steps, rec)
		emit.Emit(EventStepComplete, step, nil)
	}

	if trace.FinalAnswer == "" && !trace.EarlyStop {
		trace.EarlyStop = true
		if budget.Expired() {
			trace.EarlyStopReason = StopTimeLimit
		} else {
			trace.EarlyStopReason = StopMaxSteps
		}
	}

	result := finish(rt, spec, trace)
	emit.Emit(EventAgentComplete, len(trace.Steps), map[string]interface{}{
		"success": result.Success, "early_stop": trace.EarlyStop,
	})
	return result
}

// finish recovers a typed output from the trace: final answer first, last
// thought as fallback, then trace reconstruction from tool observations.
func finish[I, O any](rt *Runtime, spec *Spec[I, O], trace *Trace) *Result[O] {
	finalText := trace.FinalAnswer
	if finalText == "" && len(trace.Steps) > 0 {
		finalText = trace.Steps[len(trace.Steps)-1].Thought
	}

	if out, ok := spec.ParseOutput(finalText, trace); ok && out != nil {
		res := success(out, trace)
		if spec.Grader != nil {
			g := spec.Grader.Grade(finalText)
			res.Grade = &g
		}
		return res
	}

	if spec.Reconstruct != nil {
		if out, ok := spec.Reconstruct(trace); ok && out != nil {
			rt.logger.Info("output reconstructed from trace",
				zap.String("agent", spec.Name), zap.Int("steps", len(trace.Steps)))
			return success(out, trace)
		}
	}

	reason := trace.EarlyStopReason
	if reason == "" {
		reason = "unparsable final answer"
	}
	return failure[O](trace, "no usable output: "+reason)
}

// formatObservation renders a tool result for the trace and the oracle
// conversation. Oversized payloads are truncated so a verbose tool cannot
// blow out the context window.
func formatObservation(res ToolResult) string {
	b, err := json.Marshal(res)
	if err != nil {
		return `{"success":false,"error":"unencodable tool result"}`
	}
	s := string(b)
	if len(s) > maxObservationChars {
		s = s[:maxObservationChars] + "...(truncated)"
	}
	return s
}
