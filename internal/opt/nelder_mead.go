package opt

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// NelderMeadConfig controls the simplex search.
type NelderMeadConfig struct {
	// MaxEvaluations caps objective evaluations. 0 means 200 per dimension.
	MaxEvaluations int

	// MaxIterations caps simplex iterations. 0 means 200 per dimension.
	MaxIterations int

	// SimplexSize is the edge length of the initial simplex around x0.
	SimplexSize float64

	// FunctionTolerance is the minimum improvement of the best vertex that
	// counts as progress.
	FunctionTolerance float64

	// Patience is the number of iterations without progress after which the
	// search is considered converged.
	Patience int
}

// DefaultNelderMeadConfig returns the tolerances used for chemical potential matching
func DefaultNelderMeadConfig() NelderMeadConfig {
	return NelderMeadConfig{
		SimplexSize:       0.05,
		FunctionTolerance: 1e-8,
		Patience:          10,
	}
}

// NelderMeadAdapter wraps gonum's Nelder-Mead simplex method to conform to our Optimizer interface
type NelderMeadAdapter struct {
	config NelderMeadConfig
}

// NewNelderMead creates a new Nelder-Mead optimizer adapter
func NewNelderMead(config NelderMeadConfig) *NelderMeadAdapter {
	defaults := DefaultNelderMeadConfig()
	if config.SimplexSize <= 0 {
		config.SimplexSize = defaults.SimplexSize
	}
	if config.FunctionTolerance <= 0 {
		config.FunctionTolerance = defaults.FunctionTolerance
	}
	if config.Patience <= 0 {
		config.Patience = defaults.Patience
	}
	return &NelderMeadAdapter{config: config}
}

func (n *NelderMeadAdapter) Name() string {
	return "nelder-mead"
}

// Minimize runs the simplex search from x0. The search is unconstrained:
// infeasible regions only show up as +Inf objective values.
func (n *NelderMeadAdapter) Minimize(ctx context.Context, f Objective, x0 []float64) (Result, error) {
	dim := len(x0)
	if dim == 0 {
		return Result{}, errors.New("nelder-mead: empty starting point")
	}

	maxEvals := n.config.MaxEvaluations
	if maxEvals <= 0 {
		maxEvals = 200 * dim
	}
	maxIters := n.config.MaxIterations
	if maxIters <= 0 {
		maxIters = 200 * dim
	}

	tr := newTracker(ctx, f)
	start := append([]float64(nil), x0...)

	// gonum refuses to start from a point scoring +Inf, so an infeasible
	// start moves to the best feasible vertex of the initial simplex.
	f0 := tr.eval(start)
	if math.IsInf(f0, 1) {
		start, f0 = n.feasibleVertex(tr, start)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if math.IsInf(f0, 1) {
		x, fx, evals := tr.best()
		slog.Debug("Nelder-Mead found no feasible vertex", "start", x0, "evaluations", evals)
		return Result{X: x, F: fx, Evaluations: evals}, nil
	}

	remaining := maxEvals - tr.evaluations()
	if remaining < 1 {
		remaining = 1
	}
	problem := optimize.Problem{Func: tr.eval}
	settings := &optimize.Settings{
		InitValues:      &optimize.Location{F: f0},
		FuncEvaluations: remaining,
		MajorIterations: maxIters,
		Converger: &optimize.FunctionConverge{
			Absolute:   n.config.FunctionTolerance,
			Iterations: n.config.Patience,
		},
		Concurrent: 1,
	}
	method := &optimize.NelderMead{SimplexSize: n.config.SimplexSize}

	res, err := optimize.Minimize(problem, start, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	x, fx, evals := tr.best()
	result := Result{X: x, F: fx, Evaluations: evals}
	if res != nil {
		result.Iterations = res.Stats.MajorIterations
		result.Converged = res.Status == optimize.FunctionConvergence || res.Status == optimize.MethodConverge
	}
	if err != nil {
		// The best point seen is still valid; the caller judges it by its score.
		slog.Debug("Nelder-Mead stopped with error", "error", err, "best_cost", fx, "evaluations", evals)
	}
	if x == nil {
		result.X = start
	}

	return result, nil
}

// feasibleVertex evaluates the remaining vertices of the initial simplex
// around x0 (x0 plus SimplexSize along each axis) and returns the one with
// the lowest finite score, or x0 and +Inf when none is finite.
func (n *NelderMeadAdapter) feasibleVertex(tr *tracker, x0 []float64) ([]float64, float64) {
	best, bestF := x0, math.Inf(1)
	for i := range x0 {
		v := append([]float64(nil), x0...)
		v[i] += n.config.SimplexSize
		if fv := tr.eval(v); fv < bestF {
			best, bestF = v, fv
		}
	}
	return best, bestF
}
