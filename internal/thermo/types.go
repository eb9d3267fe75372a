package thermo

import (
	"fmt"
	"strings"
)

// Element identifies a chemical element (e.g. "Co").
type Element string

// ElementSet is an ordered list of elements. The first element is the
// dependent one: its fraction is always 1 minus the sum of the others.
type ElementSet []Element

// NewElementSet builds an ElementSet from element names.
// At least two distinct, non-empty names are required.
func NewElementSet(names ...string) (ElementSet, error) {
	if len(names) < 2 {
		return nil, fmt.Errorf("element set needs at least 2 elements, got %d", len(names))
	}

	seen := make(map[string]bool, len(names))
	es := make(ElementSet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("element name cannot be empty")
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate element: %s", n)
		}
		seen[n] = true
		es = append(es, Element(n))
	}
	return es, nil
}

// Dependent returns the element whose fraction is derived from the others.
func (es ElementSet) Dependent() Element {
	return es[0]
}

// Independent returns the elements that appear in a CompositionVector.
func (es ElementSet) Independent() []Element {
	return es[1:]
}

// Strings returns the element names in order.
func (es ElementSet) Strings() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = string(e)
	}
	return out
}

// CompositionVector holds the mole fractions of all non-dependent elements,
// aligned with ElementSet.Independent(). Values outside [0,1] are allowed;
// the optimizer may visit them transiently.
type CompositionVector []float64

// DependentFraction returns 1 - sum(c).
func (c CompositionVector) DependentFraction() float64 {
	var sum float64
	for _, v := range c {
		sum += v
	}
	return 1 - sum
}

// Full returns the N-length composition with the dependent fraction prepended.
func (c CompositionVector) Full() []float64 {
	full := make([]float64, 0, len(c)+1)
	full = append(full, c.DependentFraction())
	return append(full, c...)
}

// Clone returns an independent copy.
func (c CompositionVector) Clone() CompositionVector {
	if c == nil {
		return nil
	}
	return append(CompositionVector(nil), c...)
}

// PotentialVector holds one chemical potential per element, aligned with ElementSet.
type PotentialVector []float64

// Relative returns mu[0] - mu[i] for i = 1..N-1.
func (p PotentialVector) Relative() []float64 {
	rel := make([]float64, len(p)-1)
	for i := 1; i < len(p); i++ {
		rel[i-1] = p[0] - p[i]
	}
	return rel
}
