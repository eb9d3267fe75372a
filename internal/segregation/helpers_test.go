package segregation

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/gbseg/internal/opt"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/thermotest"
	"github.com/stretchr/testify/require"
)

const (
	grainPhase    = "FCC_A1"
	boundaryPhase = "LIQUID"
)

func binary(t *testing.T) thermo.ElementSet {
	t.Helper()
	es, err := thermo.NewElementSet("A", "B")
	require.NoError(t, err)
	return es
}

// linearBoundary returns a binary stub oracle: the grain interior has equal
// potentials, the boundary phase has μB − μA = −k·(xB − target(T)), so the
// residual is k²·(xB − target(T))² and vanishes at the target.
func linearBoundary(k float64, target func(T float64) float64) *thermotest.Oracle {
	return thermotest.New(func(sys thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		c, temp, err := thermotest.Composition(sys, conds)
		if err != nil {
			return nil, err
		}
		if len(sys.Phases) > 0 && sys.Phases[0] == boundaryPhase {
			return thermo.PotentialVector{0, -k * (c[0] - target(temp))}, nil
		}
		return thermo.PotentialVector{-1000, -1000}, nil
	})
}

// failingBoundary converges for the grain interior and never for the boundary
// at the temperatures listed in bad (all temperatures when bad is nil).
func failingBoundary(k float64, target func(T float64) float64, bad map[float64]bool) *thermotest.Oracle {
	inner := linearBoundary(k, target)
	return thermotest.New(func(sys thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		if len(sys.Phases) > 0 && sys.Phases[0] == boundaryPhase {
			temp, _ := conds.Value(thermo.CondTemperature)
			if bad == nil || bad[temp] {
				return nil, thermo.NotConverged("no boundary equilibrium at T=%g", temp)
			}
		}
		return inner.Potentials(sys, conds)
	})
}

func testProblem(t *testing.T, temps ...float64) Problem {
	return Problem{
		Database:                  "stub",
		Elements:                  binary(t),
		Composition:               thermo.CompositionVector{0.2},
		GrainPhases:               []string{grainPhase},
		BoundaryPhases:            []string{boundaryPhase},
		DisableGlobalMinimization: true,
		Pressure:                  1e5,
		TotalMoles:                1,
		Temperatures:              temps,
	}
}

func boundaryScorer(t *testing.T, oracle thermo.Oracle) *ResidualScorer {
	t.Helper()
	p := testProblem(t)
	session, err := oracle.Configure(context.Background(), p.BoundarySystem())
	require.NoError(t, err)
	session = session.With(thermo.CondPressure, p.Pressure).With(thermo.CondTotalMoles, p.TotalMoles)
	return NewResidualScorer(session, p.Elements)
}

// scriptedOptimizer records every starting point and returns scripted results.
type scriptedOptimizer struct {
	seeds   [][]float64
	results []opt.Result
}

func (s *scriptedOptimizer) Name() string { return "scripted" }

func (s *scriptedOptimizer) Minimize(_ context.Context, f opt.Objective, x0 []float64) (opt.Result, error) {
	s.seeds = append(s.seeds, append([]float64(nil), x0...))
	if len(s.results) == 0 {
		return opt.Result{}, fmt.Errorf("no scripted result left")
	}
	r := s.results[0]
	s.results = s.results[1:]
	if r.X == nil {
		r.X = x0
	}
	return r, nil
}

func converged(x ...float64) opt.Result {
	return opt.Result{X: x, F: 0.01, Evaluations: 5, Converged: true}
}

func failed(x ...float64) opt.Result {
	return opt.Result{X: x, F: math.Inf(1), Evaluations: 5}
}
