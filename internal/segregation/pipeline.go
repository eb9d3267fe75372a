package segregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwbudde/gbseg/internal/opt"
	"github.com/cwbudde/gbseg/internal/thermo"
)

// Problem is the immutable input of a segregation sweep.
type Problem struct {
	Database string
	Elements thermo.ElementSet

	// Composition is the bulk (grain interior) composition. It also serves as
	// the baseline seed of the boundary search.
	Composition thermo.CompositionVector

	// GrainPhases restricts the grain-interior calculation; empty selects the
	// database default phases.
	GrainPhases []string

	BoundaryPhases            []string
	DisableGlobalMinimization bool

	Pressure     float64
	TotalMoles   float64
	Temperatures []float64
}

// GrainSystem returns the oracle system used for the grain interior.
func (p Problem) GrainSystem() thermo.System {
	return thermo.System{
		Database: p.Database,
		Elements: p.Elements,
		Phases:   p.GrainPhases,
	}
}

// BoundarySystem returns the oracle system used for the boundary phase.
func (p Problem) BoundarySystem() thermo.System {
	return thermo.System{
		Database:                  p.Database,
		Elements:                  p.Elements,
		Phases:                    p.BoundaryPhases,
		DisableGlobalMinimization: p.DisableGlobalMinimization,
	}
}

// Run executes the whole pipeline: grain-interior reference potentials over the
// grid, then the continuation sweep for the boundary composition.
// Configuration and reference failures abort the run; no partial series is returned.
func Run(ctx context.Context, oracle thermo.Oracle, problem Problem, optimizer opt.Optimizer, opts ...Option) (*ResultSeries, error) {
	if len(problem.Composition) != len(problem.Elements)-1 {
		return nil, fmt.Errorf("composition has %d fractions, expected %d", len(problem.Composition), len(problem.Elements)-1)
	}

	slog.Info("Starting segregation sweep",
		"database", problem.Database,
		"elements", problem.Elements.Strings(),
		"temperatures", len(problem.Temperatures),
		"optimizer", optimizer.Name(),
	)

	grainSession, err := configure(ctx, oracle, problem.GrainSystem())
	if err != nil {
		return nil, err
	}

	profile := &GrainProfile{
		Session:     grainSession,
		Elements:    problem.Elements,
		Composition: problem.Composition,
		Pressure:    problem.Pressure,
		TotalMoles:  problem.TotalMoles,
	}
	references, err := profile.Compute(ctx, problem.Temperatures)
	if err != nil {
		return nil, err
	}

	boundarySession, err := configure(ctx, oracle, problem.BoundarySystem())
	if err != nil {
		return nil, err
	}
	boundarySession = boundarySession.
		With(thermo.CondPressure, problem.Pressure).
		With(thermo.CondTotalMoles, problem.TotalMoles)

	scorer := NewResidualScorer(boundarySession, problem.Elements)
	solver := NewSolver(scorer, optimizer, problem.Composition, opts...)

	return solver.Sweep(ctx, problem.Temperatures, references)
}

func configure(ctx context.Context, oracle thermo.Oracle, sys thermo.System) (thermo.Session, error) {
	session, err := oracle.Configure(ctx, sys)
	if err != nil {
		var cfgErr *thermo.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &thermo.ConfigurationError{Database: sys.Database, Err: err}
	}
	return session, nil
}
