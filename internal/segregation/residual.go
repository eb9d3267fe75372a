package segregation

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// ResidualScorer scores a candidate boundary composition against reference
// (grain-interior) potentials:
//
//	J = Σ_{i=1..N-1} ((μg[0] − μg[i]) − (μb[0] − μb[i]))²
//
// Only potential differences relative to the dependent element are compared.
type ResidualScorer struct {
	session  thermo.Session
	elements thermo.ElementSet
}

// NewResidualScorer creates a scorer evaluating candidates in the given boundary session.
// Pressure and total moles are expected to be set on the session already.
func NewResidualScorer(session thermo.Session, elements thermo.ElementSet) *ResidualScorer {
	return &ResidualScorer{session: session, elements: elements}
}

// Score returns the residual of candidate at temperature t, or +Inf when the
// oracle cannot evaluate it. It never fails.
func (r *ResidualScorer) Score(ctx context.Context, candidate thermo.CompositionVector, reference thermo.PotentialVector, t float64) float64 {
	n := len(r.elements)
	if len(candidate) != n-1 || len(reference) != n {
		return math.Inf(1)
	}

	session := r.session.With(thermo.CondTemperature, t)
	for i, e := range r.elements.Independent() {
		session = session.With(thermo.Fraction(e), candidate[i])
	}

	eq, err := session.Evaluate(ctx)
	if err != nil {
		if errors.Is(err, thermo.ErrNotConverged) {
			slog.Debug("Boundary evaluation failed", "T", t, "candidate", []float64(candidate), "error", err)
		} else {
			slog.Warn("Boundary evaluation error", "T", t, "candidate", []float64(candidate), "error", err)
		}
		return math.Inf(1)
	}
	mu, err := thermo.ReadPotentials(eq, r.elements)
	if err != nil {
		slog.Debug("Boundary potentials unavailable", "T", t, "error", err)
		return math.Inf(1)
	}

	var sum float64
	for i := 1; i < n; i++ {
		d := (reference[0] - reference[i]) - (mu[0] - mu[i])
		sum += d * d
	}
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}
