package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name:        "echo",
		Description: "Echoes its input back.",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params, nil
		},
	})
	reg.Register(&Tool{
		Name:        "fail",
		Description: "Always fails.",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("backend unavailable")
		},
	})
	reg.Register(&Tool{
		Name:        "explode",
		Description: "Panics.",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	})
	return reg
}

func TestExecutorSuccess(t *testing.T) {
	ex := NewToolExecutor(testRegistry(), zap.NewNop())
	res := ex.Execute(context.Background(), "echo", map[string]interface{}{"k": "v"})
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	data, ok := res.Data.(map[string]interface{})
	if !ok || data["k"] != "v" {
		t.Errorf("data = %v", res.Data)
	}
}

func TestExecutorError(t *testing.T) {
	ex := NewToolExecutor(testRegistry(), zap.NewNop())
	res := ex.Execute(context.Background(), "fail", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "backend unavailable" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecutorPanicIsolated(t *testing.T) {
	ex := NewToolExecutor(testRegistry(), zap.NewNop())
	res := ex.Execute(context.Background(), "explode", nil)
	if res.Success {
		t.Fatal("panic must surface as a failed result")
	}
	if !strings.Contains(res.Error, "explode") || !strings.Contains(res.Error, "boom") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	ex := NewToolExecutor(testRegistry(), zap.NewNop())
	res := ex.Execute(context.Background(), "no_such_tool", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "unknown tool") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecutorTiming(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name: "slow",
		Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			time.Sleep(20 * time.Millisecond)
			return "ok", nil
		},
	})
	ex := NewToolExecutor(reg, zap.NewNop())
	res := ex.Execute(context.Background(), "slow", nil)
	if res.ExecutionMs < 15 {
		t.Errorf("execution_ms = %d, want >= 15", res.ExecutionMs)
	}
}

func TestRegistryNilSafe(t *testing.T) {
	var reg *Registry
	if _, ok := reg.Get("anything"); ok {
		t.Error("nil registry should hold no tools")
	}
	if names := reg.Names(); len(names) != 0 {
		t.Errorf("names = %v", names)
	}
	if desc := reg.Describe(); desc != "" {
		t.Errorf("describe = %q", desc)
	}
}

func TestRegistryDescribe(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name:        "lookup",
		Description: "Finds a question by ID.",
		ParamSchema: map[string]interface{}{"id": "string"},
	})
	desc := reg.Describe()
	if !strings.Contains(desc, "lookup") || !strings.Contains(desc, "Finds a question") {
		t.Errorf("describe = %q", desc)
	}
	if !strings.Contains(desc, `"id"`) {
		t.Errorf("describe missing schema: %q", desc)
	}
}
