package segregation

import (
	"encoding/json"
	"math"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// Status classifies a temperature step.
type Status int

const (
	// Undetermined means the best residual exceeded the acceptance threshold
	// or the oracle failed throughout the search.
	Undetermined Status = iota
	Converged
)

func (s Status) String() string {
	if s == Converged {
		return "converged"
	}
	return "undetermined"
}

// SeedSource records where a step's starting point came from.
type SeedSource int

const (
	SeedBaseline SeedSource = iota
	SeedPrevious
)

func (s SeedSource) String() string {
	if s == SeedPrevious {
		return "previous"
	}
	return "baseline"
}

// Outcome is the immutable result of one temperature step.
type Outcome struct {
	Temperature float64
	Status      Status

	// Composition is the converged boundary composition; nil when undetermined.
	Composition thermo.CompositionVector

	// Score is the best residual found, kept for undetermined steps too.
	Score float64

	Evaluations int
	Seed        SeedSource
}

// Converged reports whether the step produced a composition.
func (o Outcome) Converged() bool {
	return o.Status == Converged
}

// ResultSeries is an append-only list of outcomes, one per temperature,
// aligned with the temperature grid. It is not safe for concurrent use;
// hand out Snapshot copies instead.
type ResultSeries struct {
	elements thermo.ElementSet
	outcomes []Outcome
}

// NewResultSeries creates an empty series for the given elements.
func NewResultSeries(elements thermo.ElementSet) *ResultSeries {
	return &ResultSeries{elements: elements}
}

// Append adds the outcome for the next temperature.
func (s *ResultSeries) Append(o Outcome) {
	o.Composition = o.Composition.Clone()
	s.outcomes = append(s.outcomes, o)
}

// Len returns the number of outcomes.
func (s *ResultSeries) Len() int {
	return len(s.outcomes)
}

// At returns the i-th outcome.
func (s *ResultSeries) At(i int) Outcome {
	return s.outcomes[i]
}

// Elements returns the element set the compositions refer to.
func (s *ResultSeries) Elements() thermo.ElementSet {
	return s.elements
}

// Temperatures returns the temperature axis in sweep order.
func (s *ResultSeries) Temperatures() []float64 {
	ts := make([]float64, len(s.outcomes))
	for i, o := range s.outcomes {
		ts[i] = o.Temperature
	}
	return ts
}

// Full returns the full N-length composition at i, with the dependent
// fraction reconstructed. ok is false for undetermined points.
func (s *ResultSeries) Full(i int) (full []float64, ok bool) {
	o := s.outcomes[i]
	if !o.Converged() {
		return nil, false
	}
	return o.Composition.Full(), true
}

// Converged returns the number of converged points.
func (s *ResultSeries) Converged() int {
	n := 0
	for _, o := range s.outcomes {
		if o.Converged() {
			n++
		}
	}
	return n
}

// Evaluations returns the total number of residual evaluations.
func (s *ResultSeries) Evaluations() int {
	n := 0
	for _, o := range s.outcomes {
		n += o.Evaluations
	}
	return n
}

// Snapshot returns a deep copy.
func (s *ResultSeries) Snapshot() *ResultSeries {
	cp := &ResultSeries{elements: s.elements, outcomes: make([]Outcome, len(s.outcomes))}
	for i, o := range s.outcomes {
		o.Composition = o.Composition.Clone()
		cp.outcomes[i] = o
	}
	return cp
}

type seriesPoint struct {
	Temperature float64   `json:"temperature"`
	Status      string    `json:"status"`
	Composition []float64 `json:"composition"` // full composition, null when undetermined
	Score       *float64  `json:"score"`
	Evaluations int       `json:"evaluations"`
	Seed        string    `json:"seed"`
}

type seriesJSON struct {
	Elements []string      `json:"elements"`
	Points   []seriesPoint `json:"points"`
}

// MarshalJSON encodes the series with full compositions and null for missing data.
func (s *ResultSeries) MarshalJSON() ([]byte, error) {
	out := seriesJSON{Elements: s.elements.Strings(), Points: make([]seriesPoint, len(s.outcomes))}
	for i, o := range s.outcomes {
		p := seriesPoint{
			Temperature: o.Temperature,
			Status:      o.Status.String(),
			Evaluations: o.Evaluations,
			Seed:        o.Seed.String(),
		}
		if full, ok := s.Full(i); ok {
			p.Composition = full
		}
		if !math.IsInf(o.Score, 0) && !math.IsNaN(o.Score) {
			score := o.Score
			p.Score = &score
		}
		out.Points[i] = p
	}
	return json.Marshal(out)
}
