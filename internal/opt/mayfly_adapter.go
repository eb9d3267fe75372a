package opt

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyConfig controls the population-based search.
type MayflyConfig struct {
	MaxIterations int
	PopSize       int // mayfly v0.1.0 needs at least 20
	Seed          int64

	// Lower and Upper bound every coordinate. Mole fractions live in [0, 1].
	Lower, Upper float64
}

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
// Mayfly samples its own population inside the bounds, so x0 only competes
// with the swarm's best: the result is never worse than the starting point.
type MayflyAdapter struct {
	config MayflyConfig
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(config MayflyConfig) *MayflyAdapter {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 100
	}
	if config.PopSize < 20 {
		config.PopSize = 20
	}
	if config.Upper <= config.Lower {
		config.Lower, config.Upper = 0, 1
	}
	return &MayflyAdapter{config: config}
}

func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// Minimize executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Minimize(ctx context.Context, f Objective, x0 []float64) (Result, error) {
	dim := len(x0)
	if dim == 0 {
		return Result{}, errors.New("mayfly: empty starting point")
	}

	tr := newTracker(ctx, f)
	tr.eval(x0)

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = tr.eval
	config.ProblemSize = dim
	config.MaxIterations = m.config.MaxIterations
	config.NPop = m.config.PopSize
	config.LowerBound = m.config.Lower
	config.UpperBound = m.config.Upper

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.config.Seed))

	_, err := mayfly.Optimize(config)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		// Fall back to the best point evaluated so far (at least x0)
		slog.Warn("Mayfly optimization failed", "error", err)
	}

	x, fx, evals := tr.best()
	return Result{
		X:           x,
		F:           fx,
		Evaluations: evals,
		Iterations:  m.config.MaxIterations,
		Converged:   err == nil,
	}, nil
}
