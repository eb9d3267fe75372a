// Package model implements an equilibrium oracle on a regular-solution
// thermodynamic model read from a YAML database.
//
// For a phase with reference Gibbs energies G°ᵢ(T) and binary interaction
// parameters Lᵢⱼ(T), the chemical potentials are
//
//	μᵢ = G°ᵢ + RT ln xᵢ + Σⱼ Lᵢⱼ xⱼ − Σⱼ<ₖ Lⱼₖ xⱼ xₖ
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Linear is a temperature-dependent parameter A + B·T.
type Linear struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
}

// At evaluates the parameter at temperature t.
func (l Linear) At(t float64) float64 {
	return l.A + l.B*t
}

// Interaction is a binary regular-solution parameter.
type Interaction struct {
	Elements [2]string `yaml:"elements"`
	L        Linear    `yaml:"l"`
}

// Phase holds the parameters of one solution phase.
type Phase struct {
	// Default marks phases selected when a calculation does not name any.
	Default bool `yaml:"default"`

	// Endmembers maps element to its reference Gibbs energy (J/mol).
	Endmembers   map[string]Linear `yaml:"endmembers"`
	Interactions []Interaction     `yaml:"interactions"`
}

// Database is a named set of phases.
type Database struct {
	Name   string           `yaml:"name"`
	Phases map[string]Phase `yaml:"phases"`
}

// ParseDatabase decodes a YAML database.
func ParseDatabase(data []byte) (*Database, error) {
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse database: %w", err)
	}
	if db.Name == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if len(db.Phases) == 0 {
		return nil, fmt.Errorf("database %s defines no phases", db.Name)
	}
	for name, p := range db.Phases {
		for _, in := range p.Interactions {
			if in.Elements[0] == "" || in.Elements[1] == "" || in.Elements[0] == in.Elements[1] {
				return nil, fmt.Errorf("phase %s: invalid interaction %v", name, in.Elements)
			}
		}
	}
	return &db, nil
}

// LoadDatabase reads a YAML database file.
func LoadDatabase(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}
	return ParseDatabase(data)
}
