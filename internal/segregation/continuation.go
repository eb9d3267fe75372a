package segregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/gbseg/internal/opt"
	"github.com/cwbudde/gbseg/internal/thermo"
)

// DefaultThreshold is the largest residual accepted as converged, in units of
// the squared potential-difference sum.
const DefaultThreshold = 1.0

// ContinuationState is carried from one temperature step to the next:
// the last converged composition and whether the last step converged.
type ContinuationState struct {
	last      thermo.CompositionVector
	succeeded bool
}

// Seed returns the starting point for the next step: the previous converged
// composition, or baseline if the previous step did not converge.
func (s ContinuationState) Seed(baseline thermo.CompositionVector) (thermo.CompositionVector, SeedSource) {
	if s.succeeded {
		return s.last.Clone(), SeedPrevious
	}
	return baseline.Clone(), SeedBaseline
}

// Next returns the state after outcome o.
func (s ContinuationState) Next(o Outcome) ContinuationState {
	if o.Converged() {
		return ContinuationState{last: o.Composition.Clone(), succeeded: true}
	}
	return ContinuationState{}
}

// Succeeded reports whether the last step converged.
func (s ContinuationState) Succeeded() bool {
	return s.succeeded
}

// StepEvent is delivered to observers after every temperature step.
type StepEvent struct {
	Index   int
	Total   int
	Outcome Outcome
	Series  *ResultSeries // snapshot including this step
}

// Observer receives step events. It runs on the solver goroutine.
type Observer func(StepEvent)

// Option configures a Solver.
type Option func(*Solver)

// WithThreshold sets the acceptance threshold for the residual.
func WithThreshold(threshold float64) Option {
	return func(s *Solver) {
		s.threshold = threshold
	}
}

// WithObserver registers a step observer.
func WithObserver(obs Observer) Option {
	return func(s *Solver) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// Solver walks a temperature grid and finds, at each temperature, the boundary
// composition whose relative chemical potentials match the grain interior.
// Steps are strictly sequential: each step is seeded from the previous one.
type Solver struct {
	scorer    *ResidualScorer
	optimizer opt.Optimizer
	baseline  thermo.CompositionVector
	elements  thermo.ElementSet
	threshold float64
	observers []Observer
}

// NewSolver creates a continuation solver. baseline seeds the first step and
// every step following an undetermined one.
func NewSolver(scorer *ResidualScorer, optimizer opt.Optimizer, baseline thermo.CompositionVector, opts ...Option) *Solver {
	s := &Solver{
		scorer:    scorer,
		optimizer: optimizer,
		baseline:  baseline.Clone(),
		elements:  scorer.elements,
		threshold: DefaultThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Step solves a single temperature and returns its outcome and the next state.
// The only error is a cancelled context.
func (s *Solver) Step(ctx context.Context, state ContinuationState, t float64, reference thermo.PotentialVector) (Outcome, ContinuationState, error) {
	seed, source := state.Seed(s.baseline)

	objective := func(x []float64) float64 {
		return s.scorer.Score(ctx, x, reference, t)
	}

	res, err := s.optimizer.Minimize(ctx, objective, seed)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, state, ctxErr
		}
		slog.Warn("Optimizer failed", "T", t, "optimizer", s.optimizer.Name(), "error", err)
		res = opt.Result{X: seed, F: math.Inf(1)}
	}

	outcome := Outcome{
		Temperature: t,
		Score:       res.F,
		Evaluations: res.Evaluations,
		Seed:        source,
	}

	// Validation of the calculation result
	if math.IsNaN(res.F) || res.F > s.threshold {
		outcome.Status = Undetermined
		slog.Warn("Residual error is too high",
			"T", t,
			"J", res.F,
			"threshold", s.threshold,
			"seed", source.String(),
			"evaluations", res.Evaluations,
		)
	} else {
		outcome.Status = Converged
		outcome.Composition = thermo.CompositionVector(res.X).Clone()
		slog.Info("Boundary composition found",
			"T", t,
			"J", res.F,
			"composition", outcome.Composition.Full(),
			"seed", source.String(),
			"evaluations", res.Evaluations,
		)
	}

	return outcome, state.Next(outcome), nil
}

// Sweep runs Step over the grid in the given order and collects one outcome
// per temperature. Undetermined steps never abort the sweep; only a cancelled
// context does.
func (s *Solver) Sweep(ctx context.Context, temperatures []float64, references []thermo.PotentialVector) (*ResultSeries, error) {
	if len(temperatures) != len(references) {
		return nil, fmt.Errorf("got %d reference potential vectors for %d temperatures", len(references), len(temperatures))
	}
	if len(s.baseline) != len(s.elements)-1 {
		return nil, errors.New("baseline composition does not match the element set")
	}

	series := NewResultSeries(s.elements)
	var state ContinuationState

	for i, t := range temperatures {
		outcome, next, err := s.Step(ctx, state, t, references[i])
		if err != nil {
			return nil, err
		}
		state = next
		series.Append(outcome)

		if len(s.observers) > 0 {
			event := StepEvent{Index: i, Total: len(temperatures), Outcome: outcome, Series: series.Snapshot()}
			for _, obs := range s.observers {
				obs(event)
			}
		}
	}

	slog.Info("Sweep complete",
		"temperatures", series.Len(),
		"converged", series.Converged(),
		"undetermined", series.Len()-series.Converged(),
		"evaluations", series.Evaluations(),
	)
	return series, nil
}
