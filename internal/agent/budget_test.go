package agent

import (
	"context"
	"testing"
	"time"
)

func TestBudgetRemaining(t *testing.T) {
	b := NewBudget(time.Second)
	if b.Expired() {
		t.Fatal("fresh budget should not be expired")
	}
	if b.Remaining() > time.Second {
		t.Errorf("remaining %v exceeds allowance", b.Remaining())
	}
	if !b.HasTimeFor(10 * time.Millisecond) {
		t.Error("expected time for a small operation")
	}
	if b.HasTimeFor(2 * time.Second) {
		t.Error("should not have time for an operation larger than the allowance")
	}
}

func TestBudgetExpired(t *testing.T) {
	b := NewBudget(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if !b.Expired() {
		t.Error("budget should be expired")
	}
	if b.Remaining() != 0 {
		t.Errorf("remaining = %v, want 0", b.Remaining())
	}
	if b.HasTimeFor(time.Nanosecond) {
		t.Error("expired budget has time for nothing")
	}
}

func TestBudgetNearTimeout(t *testing.T) {
	b := NewBudget(10 * time.Millisecond)
	if b.NearTimeout() {
		t.Error("fresh budget should not be near timeout")
	}
	time.Sleep(9 * time.Millisecond)
	if !b.NearTimeout() {
		t.Error("expected near timeout past 80% of the allowance")
	}
}

func TestBudgetRecommendedSteps(t *testing.T) {
	b := NewBudget(time.Second)
	if n := b.RecommendedSteps(100 * time.Millisecond); n < 8 || n > 10 {
		t.Errorf("recommended steps = %d", n)
	}
	if n := b.RecommendedSteps(time.Hour); n != 1 {
		t.Errorf("recommended steps floor = %d, want 1", n)
	}
	if n := b.RecommendedSteps(0); n != 1 {
		t.Errorf("recommended steps with zero estimate = %d, want 1", n)
	}
}

func TestBudgetStepContextCapsAtRemaining(t *testing.T) {
	b := NewBudget(50 * time.Millisecond)
	ctx, cancel := b.StepContext(context.Background(), time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if until := time.Until(deadline); until > 60*time.Millisecond {
		t.Errorf("deadline %v out past the remaining allowance", until)
	}
}

func TestBudgetStepContextExpired(t *testing.T) {
	b := NewBudget(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	ctx, cancel := b.StepContext(context.Background(), time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("context over an expired budget should cancel almost immediately")
	}
}
