package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// R is the gas constant in J/(mol·K).
const R = 8.314462618

// Oracle evaluates regular-solution databases.
type Oracle struct {
	databases map[string]*Database
}

// New creates an oracle serving the given databases by name.
func New(dbs ...*Database) *Oracle {
	o := &Oracle{databases: make(map[string]*Database, len(dbs))}
	for _, db := range dbs {
		o.databases[db.Name] = db
	}
	return o
}

// phaseModel is a phase resolved against an element set.
type phaseModel struct {
	name string
	g0   []Linear   // per element, ElementSet order
	l    [][]Linear // symmetric, zero diagonal
}

func (o *Oracle) Configure(_ context.Context, sys thermo.System) (thermo.Session, error) {
	db, ok := o.databases[sys.Database]
	if !ok {
		return nil, &thermo.ConfigurationError{Database: sys.Database, Reason: "unknown database"}
	}

	names := sys.Phases
	if len(names) == 0 {
		names = defaultPhases(db)
	}
	if len(names) == 0 {
		return nil, &thermo.ConfigurationError{Database: sys.Database, Reason: "no phases selected"}
	}

	phases := make([]*phaseModel, 0, len(names))
	for _, name := range names {
		pm, err := resolve(db, name, sys.Elements)
		if err != nil {
			return nil, &thermo.ConfigurationError{Database: sys.Database, Err: err}
		}
		phases = append(phases, pm)
	}

	global := !sys.DisableGlobalMinimization
	return thermo.NewSession(sys, func(_ context.Context, sys thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
		return evaluate(phases, global, sys.Elements, conds)
	}), nil
}

func defaultPhases(db *Database) []string {
	var names []string
	for name, p := range db.Phases {
		if p.Default {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func resolve(db *Database, name string, elements thermo.ElementSet) (*phaseModel, error) {
	p, ok := db.Phases[name]
	if !ok {
		return nil, fmt.Errorf("unknown phase %s", name)
	}

	n := len(elements)
	index := make(map[string]int, n)
	pm := &phaseModel{name: name, g0: make([]Linear, n), l: make([][]Linear, n)}
	for i, e := range elements {
		g, ok := p.Endmembers[string(e)]
		if !ok {
			return nil, fmt.Errorf("phase %s has no data for element %s", name, e)
		}
		pm.g0[i] = g
		pm.l[i] = make([]Linear, n)
		index[string(e)] = i
	}

	for _, in := range p.Interactions {
		i, okI := index[in.Elements[0]]
		j, okJ := index[in.Elements[1]]
		if !okI || !okJ {
			continue // interaction with an element outside the system
		}
		pm.l[i][j] = in.L
		pm.l[j][i] = in.L
	}
	return pm, nil
}

func evaluate(phases []*phaseModel, global bool, elements thermo.ElementSet, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
	t, ok := conds.Value(thermo.CondTemperature)
	if !ok {
		return nil, fmt.Errorf("condition %s not set", thermo.CondTemperature)
	}
	if t <= 0 {
		return nil, thermo.NotConverged("non-positive temperature %g", t)
	}

	x := make([]float64, len(elements))
	sum := 0.0
	for i, e := range elements.Independent() {
		v, ok := conds.Value(thermo.Fraction(e))
		if !ok {
			return nil, fmt.Errorf("condition %s not set", thermo.Fraction(e))
		}
		x[i+1] = v
		sum += v
	}
	x[0] = 1 - sum
	for i, v := range x {
		if !(v > 0 && v < 1) {
			return nil, thermo.NotConverged("fraction of %s out of range: %g", elements[i], v)
		}
	}

	var best thermo.ValueMap
	bestG := math.Inf(1)
	for _, pm := range phases {
		mu, gm := pm.potentials(t, x)
		if global && gm >= bestG {
			continue
		}
		values := make(thermo.ValueMap, len(mu)+1)
		for i, e := range elements {
			values[thermo.MU(e)] = mu[i]
		}
		values[thermo.GM] = gm
		best, bestG = values, gm
		if !global {
			break
		}
	}

	if n, ok := conds.Value(thermo.CondTotalMoles); ok && n <= 0 {
		return nil, thermo.NotConverged("non-positive amount %g", n)
	}
	return best, nil
}

// potentials returns the chemical potentials and molar Gibbs energy at (t, x).
func (pm *phaseModel) potentials(t float64, x []float64) ([]float64, float64) {
	n := len(x)
	rt := R * t

	// Excess energy Σ_{j<k} Ljk xj xk
	gex := 0.0
	for j := 0; j < n; j++ {
		for k := j + 1; k < n; k++ {
			gex += pm.l[j][k].At(t) * x[j] * x[k]
		}
	}

	mu := make([]float64, n)
	gm := gex
	for i := 0; i < n; i++ {
		g0 := pm.g0[i].At(t)
		ideal := rt * math.Log(x[i])

		inter := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				inter += pm.l[i][j].At(t) * x[j]
			}
		}

		mu[i] = g0 + ideal + inter - gex
		gm += x[i] * (g0 + ideal)
	}
	return mu, gm
}
