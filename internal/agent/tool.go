package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToolResult is the uniform outcome of one tool call. Failures are captured
// here and never propagate past the executor boundary.
type ToolResult struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
	ExecutionMs int64       `json:"execution_ms"`
}

// ToolFunc executes a tool call with decoded parameters.
type ToolFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Tool declares a named capability available to the reasoning loop. The
// estimated time feeds the loop's budget admission control: a tool is never
// started when the remaining allowance cannot plausibly absorb it.
type Tool struct {
	Name          string
	Description   string
	ParamSchema   map[string]interface{}
	EstimatedTime time.Duration
	Run           ToolFunc
}

// Registry holds the declared tool set for an agent.
type Registry struct {
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns a tool by name. Safe on a nil registry.
func (r *Registry) Get(name string) (*Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe renders the tool set as a prompt block for the oracle. Safe on
// a nil registry, which reads as an empty tool set.
func (r *Registry) Describe() string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.tools) == 0 {
		return ""
	}
	var names []string
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		t := r.tools[n]
		fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
		if len(t.ParamSchema) > 0 {
			schema, _ := json.Marshal(t.ParamSchema)
			fmt.Fprintf(&b, " Parameters: %s", schema)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ToolExecutor runs single tool calls with timing and failure isolation.
// A tool that returns an error or panics yields ToolResult{Success: false};
// nothing a tool does can abort the reasoning loop.
type ToolExecutor struct {
	reg    *Registry
	logger *zap.Logger
}

// NewToolExecutor creates an executor over the given registry.
func NewToolExecutor(reg *Registry, logger *zap.Logger) *ToolExecutor {
	return &ToolExecutor{reg: reg, logger: logger}
}

// Execute runs one tool call and always returns a ToolResult.
func (e *ToolExecutor) Execute(ctx context.Context, name string, params map[string]interface{}) (res ToolResult) {
	start := time.Now()
	defer func() {
		res.ExecutionMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			res = ToolResult{
				Success:     false,
				Error:       fmt.Sprintf("tool %s panicked: %v", name, r),
				ExecutionMs: time.Since(start).Milliseconds(),
			}
			e.logger.Error("tool panic recovered",
				zap.String("tool", name), zap.Any("panic", r))
		}
	}()

	tool, ok := e.reg.Get(name)
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	data, err := tool.Run(ctx, params)
	if err != nil {
		e.logger.Warn("tool failed",
			zap.String("tool", name), zap.Error(err))
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Success: true, Data: data}
}
