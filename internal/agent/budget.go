package agent

import (
	"context"
	"time"
)

// nearTimeoutRatio is the fraction of the allowance after which the loop
// should bias toward finishing rather than starting new work.
const nearTimeoutRatio = 0.8

// Budget tracks elapsed time against a fixed allowance for one agent run.
// All methods are cheap; the budget never interrupts work itself, it only
// answers questions the loop asks before committing to the next operation.
type Budget struct {
	max     time.Duration
	started time.Time
}

// NewBudget creates a started budget with the given allowance.
func NewBudget(max time.Duration) *Budget {
	return &Budget{max: max, started: time.Now()}
}

// Reset restarts the clock.
func (b *Budget) Reset() {
	b.started = time.Now()
}

// Max returns the total allowance.
func (b *Budget) Max() time.Duration { return b.max }

// Elapsed returns time spent since the budget started.
func (b *Budget) Elapsed() time.Duration {
	return time.Since(b.started)
}

// Remaining returns the unspent allowance, never negative.
func (b *Budget) Remaining() time.Duration {
	r := b.max - b.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the allowance is spent.
func (b *Budget) Expired() bool {
	return b.Remaining() == 0
}

// HasTimeFor reports whether an operation with the given estimated duration
// plausibly fits in the remaining allowance.
func (b *Budget) HasTimeFor(est time.Duration) bool {
	return b.Remaining() >= est
}

// NearTimeout reports whether the run has consumed most of its allowance
// and should be steered toward a final answer.
func (b *Budget) NearTimeout() bool {
	return b.Elapsed() >= time.Duration(float64(b.max)*nearTimeoutRatio)
}

// RecommendedSteps returns how many steps of the given estimated duration
// fit in the remaining allowance, at least one.
func (b *Budget) RecommendedSteps(perStep time.Duration) int {
	if perStep <= 0 {
		return 1
	}
	n := int(b.Remaining() / perStep)
	if n < 1 {
		return 1
	}
	return n
}

// StepContext derives a context bounded by the smaller of the per-step
// timeout and the remaining allowance, so a single oracle call can overrun
// the budget by at most one step.
func (b *Budget) StepContext(ctx context.Context, stepTimeout time.Duration) (context.Context, context.CancelFunc) {
	d := stepTimeout
	if rem := b.Remaining(); rem < d {
		d = rem
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return context.WithTimeout(ctx, d)
}
