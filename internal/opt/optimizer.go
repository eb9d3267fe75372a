package opt

import (
	"context"
	"math"
	"sync"
)

// Objective is a black-box function to minimize. It may return +Inf for
// infeasible points; NaN is treated as +Inf.
type Objective func(x []float64) float64

// Result is the outcome of a minimization.
type Result struct {
	X           []float64 // best point found
	F           float64   // objective value at X
	Evaluations int
	Iterations  int

	// Converged reports whether the internal convergence criterion was met
	// (as opposed to the evaluation or iteration budget running out).
	Converged bool
}

// Optimizer defines a derivative-free minimization algorithm
type Optimizer interface {
	// Minimize searches for a minimum of f starting from x0.
	// It returns an error only for invalid input or when ctx is cancelled;
	// a poor minimum is reported through Result.F, not as an error.
	Minimize(ctx context.Context, f Objective, x0 []float64) (Result, error)

	// Name identifies the algorithm in logs and metrics.
	Name() string
}

// tracker wraps an objective, counting evaluations and remembering the best point.
// Optimizer libraries report their own best, but not all of them report the
// evaluation count or survive a cancelled context.
type tracker struct {
	ctx context.Context
	f   Objective

	mu    sync.Mutex
	evals int
	bestX []float64
	bestF float64
}

func newTracker(ctx context.Context, f Objective) *tracker {
	return &tracker{ctx: ctx, f: f, bestF: math.Inf(1)}
}

func (t *tracker) eval(x []float64) float64 {
	if t.ctx.Err() != nil {
		return math.Inf(1)
	}

	v := t.f(x)
	if math.IsNaN(v) {
		v = math.Inf(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.evals++
	if t.bestX == nil || v < t.bestF {
		t.bestX = append(t.bestX[:0], x...)
		t.bestF = v
	}
	return v
}

func (t *tracker) evaluations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evals
}

func (t *tracker) best() ([]float64, float64, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.bestX...), t.bestF, t.evals
}
