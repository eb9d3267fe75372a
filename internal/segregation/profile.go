package segregation

import (
	"context"
	"log/slog"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// GrainProfile evaluates the grain-interior chemical potentials of a fixed
// bulk composition over a temperature grid.
type GrainProfile struct {
	Session     thermo.Session
	Elements    thermo.ElementSet
	Composition thermo.CompositionVector
	Pressure    float64
	TotalMoles  float64
}

// Compute returns one potential vector per temperature, in grid order.
// There is no retry: any failure aborts with a *thermo.ReferenceError.
func (g *GrainProfile) Compute(ctx context.Context, temperatures []float64) ([]thermo.PotentialVector, error) {
	session := g.Session.
		With(thermo.CondPressure, g.Pressure).
		With(thermo.CondTotalMoles, g.TotalMoles)
	for i, e := range g.Elements.Independent() {
		session = session.With(thermo.Fraction(e), g.Composition[i])
	}

	refs := make([]thermo.PotentialVector, 0, len(temperatures))
	for _, t := range temperatures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		eq, err := session.With(thermo.CondTemperature, t).Evaluate(ctx)
		if err != nil {
			return nil, &thermo.ReferenceError{Temperature: t, Err: err}
		}
		mu, err := thermo.ReadPotentials(eq, g.Elements)
		if err != nil {
			return nil, &thermo.ReferenceError{Temperature: t, Err: err}
		}
		refs = append(refs, mu)
	}

	slog.Info("Grain interior potentials computed", "temperatures", len(temperatures))
	return refs, nil
}
