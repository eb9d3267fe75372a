package thermo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ConditionKind enumerates the equilibrium conditions an oracle accepts.
type ConditionKind int

const (
	Temperature ConditionKind = iota
	Pressure
	TotalMoles
	MoleFraction
)

// Condition names a single equilibrium condition. Element is only set for MoleFraction.
type Condition struct {
	Kind    ConditionKind
	Element Element
}

var (
	CondTemperature = Condition{Kind: Temperature}
	CondPressure    = Condition{Kind: Pressure}
	CondTotalMoles  = Condition{Kind: TotalMoles}
)

// Fraction returns the mole fraction condition X(el).
func Fraction(el Element) Condition {
	return Condition{Kind: MoleFraction, Element: el}
}

// String renders the condition the way equilibrium software names it: T, P, N, X(Cr).
func (c Condition) String() string {
	switch c.Kind {
	case Temperature:
		return "T"
	case Pressure:
		return "P"
	case TotalMoles:
		return "N"
	case MoleFraction:
		return "X(" + string(c.Element) + ")"
	default:
		return fmt.Sprintf("condition(%d)", int(c.Kind))
	}
}

// ParseCondition is the inverse of Condition.String.
func ParseCondition(s string) (Condition, error) {
	switch s {
	case "T":
		return CondTemperature, nil
	case "P":
		return CondPressure, nil
	case "N":
		return CondTotalMoles, nil
	}
	if el, ok := unwrap(s, "X"); ok {
		return Fraction(Element(el)), nil
	}
	return Condition{}, fmt.Errorf("unknown condition: %q", s)
}

// ConditionSet maps conditions to values. Treat it as immutable; With returns a copy.
type ConditionSet map[Condition]float64

// With returns a copy of cs with c set to v.
func (cs ConditionSet) With(c Condition, v float64) ConditionSet {
	next := make(ConditionSet, len(cs)+1)
	for k, val := range cs {
		next[k] = val
	}
	next[c] = v
	return next
}

// Value returns the value of c and whether it is set.
func (cs ConditionSet) Value(c Condition) (float64, bool) {
	v, ok := cs[c]
	return v, ok
}

// Named returns the set keyed by condition names, e.g. {"T": 1000, "X(Cr)": 0.2}.
func (cs ConditionSet) Named() map[string]float64 {
	out := make(map[string]float64, len(cs))
	for c, v := range cs {
		out[c.String()] = v
	}
	return out
}

// Key returns a canonical, order-independent encoding of the set.
func (cs ConditionSet) Key() string {
	parts := make([]string, 0, len(cs))
	for c, v := range cs {
		parts = append(parts, c.String()+"="+strconv.FormatFloat(v, 'g', -1, 64))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// PropertyKind enumerates the quantities read from an equilibrium result.
type PropertyKind int

const (
	ChemicalPotential PropertyKind = iota
	MolarGibbsEnergy
)

// Property names a quantity of an equilibrium result. Element is only set for ChemicalPotential.
type Property struct {
	Kind    PropertyKind
	Element Element
}

// MU returns the chemical potential property MU(el).
func MU(el Element) Property {
	return Property{Kind: ChemicalPotential, Element: el}
}

// GM is the molar Gibbs energy of the system.
var GM = Property{Kind: MolarGibbsEnergy}

func (p Property) String() string {
	switch p.Kind {
	case ChemicalPotential:
		return "MU(" + string(p.Element) + ")"
	case MolarGibbsEnergy:
		return "GM"
	default:
		return fmt.Sprintf("property(%d)", int(p.Kind))
	}
}

// ParseProperty is the inverse of Property.String.
func ParseProperty(s string) (Property, error) {
	if s == "GM" {
		return GM, nil
	}
	if el, ok := unwrap(s, "MU"); ok {
		return MU(Element(el)), nil
	}
	return Property{}, fmt.Errorf("unknown property: %q", s)
}

func unwrap(s, fn string) (string, bool) {
	if !strings.HasPrefix(s, fn+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	inner := s[len(fn)+1 : len(s)-1]
	return inner, inner != ""
}
