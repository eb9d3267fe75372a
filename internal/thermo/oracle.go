package thermo

import (
	"context"
	"fmt"
	"strings"
)

// System selects what an equilibrium oracle calculates with.
type System struct {
	Database string
	Elements ElementSet

	// Phases restricts the calculation to the listed phases.
	// Empty means the database default phases.
	Phases []string

	DisableGlobalMinimization bool
}

// Key returns a stable identifier for the system, used for cache keys.
func (s System) Key() string {
	return fmt.Sprintf("%s|%s|%s|gm=%t",
		s.Database,
		strings.Join(s.Elements.Strings(), ","),
		strings.Join(s.Phases, ","),
		!s.DisableGlobalMinimization,
	)
}

// Oracle is an external equilibrium evaluator.
type Oracle interface {
	// Configure prepares a calculation session for the given system.
	// A failure here is fatal for a run and is reported as *ConfigurationError.
	Configure(ctx context.Context, sys System) (Session, error)
}

// Session is a configured single-equilibrium calculation. Sessions are
// immutable: With returns a new session and leaves the receiver untouched.
type Session interface {
	With(c Condition, v float64) Session
	Conditions() ConditionSet

	// Evaluate runs the equilibrium calculation for the current conditions.
	// Non-convergence is reported as an error wrapping ErrNotConverged.
	Evaluate(ctx context.Context) (Equilibrium, error)
}

// Equilibrium is the result of a converged calculation.
type Equilibrium interface {
	Value(p Property) (float64, error)
}

// EvalFunc evaluates a system under a condition set.
type EvalFunc func(ctx context.Context, sys System, conds ConditionSet) (Equilibrium, error)

type funcSession struct {
	sys   System
	conds ConditionSet
	eval  EvalFunc
}

// NewSession returns a Session that delegates evaluation to eval.
// Oracle backends use it so that they only have to implement the calculation.
func NewSession(sys System, eval EvalFunc) Session {
	return &funcSession{sys: sys, conds: ConditionSet{}, eval: eval}
}

func (s *funcSession) With(c Condition, v float64) Session {
	return &funcSession{sys: s.sys, conds: s.conds.With(c, v), eval: s.eval}
}

func (s *funcSession) Conditions() ConditionSet {
	return s.conds
}

func (s *funcSession) Evaluate(ctx context.Context) (Equilibrium, error) {
	return s.eval(ctx, s.sys, s.conds)
}

// ValueMap is an Equilibrium backed by a plain map.
type ValueMap map[Property]float64

func (m ValueMap) Value(p Property) (float64, error) {
	v, ok := m[p]
	if !ok {
		return 0, fmt.Errorf("property %s not available", p)
	}
	return v, nil
}

// ReadPotentials reads MU(e) for every element, in ElementSet order.
func ReadPotentials(eq Equilibrium, elements ElementSet) (PotentialVector, error) {
	mu := make(PotentialVector, len(elements))
	for i, e := range elements {
		v, err := eq.Value(MU(e))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", MU(e), err)
		}
		mu[i] = v
	}
	return mu, nil
}
