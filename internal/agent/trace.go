package agent

// Action is a parsed tool invocation request.
type Action struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ThoughtStep is one entry in a reasoning trace. Steps are append-only;
// once recorded they are never mutated.
type ThoughtStep struct {
	Step        int     `json:"step"`
	Thought     string  `json:"thought"`
	Action      *Action `json:"action,omitempty"`
	Observation string  `json:"observation,omitempty"`
	ElapsedMs   int64   `json:"elapsed_ms"`
}

// Trace records the full reasoning loop of one agent run. A trace belongs
// to exactly one run and is never shared across runs.
type Trace struct {
	ID              string        `json:"id"`
	Agent           string        `json:"agent"`
	Steps           []ThoughtStep `json:"steps"`
	TotalTimeMs     int64         `json:"total_time_ms"`
	EarlyStop       bool          `json:"early_stop"`
	EarlyStopReason string        `json:"early_stop_reason,omitempty"`
	FinalAnswer     string        `json:"final_answer,omitempty"`
}

// Observations returns the non-empty observations recorded in the trace, in
// step order. Used by trace-reconstruction fallbacks that salvage an output
// from tool results when the final answer is missing or unparsable.
func (t *Trace) Observations() []string {
	var out []string
	for _, s := range t.Steps {
		if s.Observation != "" {
			out = append(out, s.Observation)
		}
	}
	return out
}

// Result is the terminal outcome of one agent run.
// Invariant: Success is true exactly when Output is non-nil.
type Result[T any] struct {
	Success bool          `json:"success"`
	Output  *T            `json:"output,omitempty"`
	Trace   *Trace        `json:"trace"`
	Grade   *QualityGrade `json:"grade,omitempty"`
	Err     string        `json:"error,omitempty"`
}

func success[T any](out *T, trace *Trace) *Result[T] {
	return &Result[T]{Success: true, Output: out, Trace: trace}
}

func failure[T any](trace *Trace, errMsg string) *Result[T] {
	return &Result[T]{Success: false, Trace: trace, Err: errMsg}
}
