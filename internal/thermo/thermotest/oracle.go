// Package thermotest provides a scriptable in-memory oracle for tests.
package thermotest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// PotentialFunc computes chemical potentials for a system under conditions.
type PotentialFunc func(sys thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error)

// Oracle is a thermo.Oracle driven by a PotentialFunc. It counts evaluations.
type Oracle struct {
	Potentials   PotentialFunc
	ConfigureErr error

	mu      sync.Mutex
	calls   int
	systems []thermo.System
}

// New returns an Oracle using fn.
func New(fn PotentialFunc) *Oracle {
	return &Oracle{Potentials: fn}
}

// Failing returns an Oracle whose evaluations never converge.
func Failing() *Oracle {
	return New(func(thermo.System, thermo.ConditionSet) (thermo.PotentialVector, error) {
		return nil, thermo.NotConverged("stub oracle always fails")
	})
}

func (o *Oracle) Configure(_ context.Context, sys thermo.System) (thermo.Session, error) {
	if o.ConfigureErr != nil {
		return nil, &thermo.ConfigurationError{Database: sys.Database, Err: o.ConfigureErr}
	}
	o.mu.Lock()
	o.systems = append(o.systems, sys)
	o.mu.Unlock()
	return thermo.NewSession(sys, o.evaluate), nil
}

func (o *Oracle) evaluate(_ context.Context, sys thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()

	mu, err := o.Potentials(sys, conds)
	if err != nil {
		return nil, err
	}
	if len(mu) != len(sys.Elements) {
		return nil, fmt.Errorf("stub returned %d potentials for %d elements", len(mu), len(sys.Elements))
	}
	values := make(thermo.ValueMap, len(mu))
	for i, e := range sys.Elements {
		values[thermo.MU(e)] = mu[i]
	}
	return values, nil
}

// Calls returns the number of evaluations so far.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// Reset zeroes the evaluation counter.
func (o *Oracle) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = 0
}

// Systems returns every system passed to Configure.
func (o *Oracle) Systems() []thermo.System {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]thermo.System(nil), o.systems...)
}

// Composition reads the independent fractions and the temperature from conds.
func Composition(sys thermo.System, conds thermo.ConditionSet) (thermo.CompositionVector, float64, error) {
	t, ok := conds.Value(thermo.CondTemperature)
	if !ok {
		return nil, 0, fmt.Errorf("temperature not set")
	}
	c := make(thermo.CompositionVector, 0, len(sys.Elements)-1)
	for _, e := range sys.Elements.Independent() {
		x, ok := conds.Value(thermo.Fraction(e))
		if !ok {
			return nil, 0, fmt.Errorf("fraction of %s not set", e)
		}
		c = append(c, x)
	}
	return c, t, nil
}
