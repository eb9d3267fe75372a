// Package config loads and validates sweep configurations.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one segregation sweep. Treat a loaded Config as read-only.
type Config struct {
	// Elements lists the system components. The first one is the dependent
	// (balance) element.
	Elements []string `yaml:"elements" json:"elements" validate:"min=2,unique,dive,required"`

	// Composition holds the bulk mole fractions of Elements[1:].
	Composition []float64 `yaml:"composition" json:"composition" validate:"required,dive,gt=0,lt=1"`

	Database string        `yaml:"database" json:"database" validate:"required"`
	Grain    GrainConfig    `yaml:"grain" json:"grain"`
	Boundary BoundaryConfig `yaml:"boundary" json:"boundary"`

	Pressure   float64 `yaml:"pressure" json:"pressure" validate:"gt=0"`
	TotalMoles float64 `yaml:"totalMoles" json:"totalMoles" validate:"gt=0"`

	Temperatures TemperatureGrid `yaml:"temperatures" json:"temperatures"`
	Solver       SolverConfig    `yaml:"solver" json:"solver"`
	Oracle       OracleConfig    `yaml:"oracle" json:"oracle"`
	Cache        *CacheConfig    `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// GrainConfig selects the grain interior phases. Empty means the database
// default phases.
type GrainConfig struct {
	Phases []string `yaml:"phases" json:"phases" validate:"dive,required"`
}

// BoundaryConfig selects the phases standing in for the grain boundary.
type BoundaryConfig struct {
	Phases                    []string `yaml:"phases" json:"phases" validate:"min=1,dive,required"`
	DisableGlobalMinimization *bool    `yaml:"disableGlobalMinimization" json:"disableGlobalMinimization"`
}

// TemperatureGrid is either an explicit list of temperatures or an evenly
// spaced range.
type TemperatureGrid struct {
	Start      float64   `yaml:"start" json:"start" validate:"gte=0"`
	Stop       float64   `yaml:"stop" json:"stop" validate:"gte=0"`
	Points     int       `yaml:"points" json:"points" validate:"gte=0"`
	Descending *bool     `yaml:"descending" json:"descending"`
	Values     []float64 `yaml:"values" json:"values" validate:"dive,gt=0"`
}

// SolverConfig selects and tunes the optimizer.
type SolverConfig struct {
	Optimizer string  `yaml:"optimizer" json:"optimizer" validate:"oneof=nelder-mead mayfly"`
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gt=0"`

	MaxEvaluations    int     `yaml:"maxEvaluations" json:"maxEvaluations" validate:"gte=0"`
	MaxIterations     int     `yaml:"maxIterations" json:"maxIterations" validate:"gte=0"`
	SimplexSize       float64 `yaml:"simplexSize" json:"simplexSize" validate:"gte=0"`
	FunctionTolerance float64 `yaml:"functionTolerance" json:"functionTolerance" validate:"gte=0"`
	Patience          int     `yaml:"patience" json:"patience" validate:"gte=0"`

	PopulationSize int   `yaml:"populationSize" json:"populationSize" validate:"gte=0"`
	Seed           int64 `yaml:"seed" json:"seed"`
}

// OracleConfig selects the equilibrium backend. Options are decoded into the
// backend's own option type.
type OracleConfig struct {
	Kind    string         `yaml:"kind" json:"kind" validate:"oneof=model remote"`
	Options map[string]any `yaml:"options" json:"options"`
}

// CacheConfig enables the Redis evaluation cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr" json:"redisAddr" validate:"required,hostname_port"`
	Prefix    string        `yaml:"prefix" json:"prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" validate:"gte=0"`
}

const (
	DefaultPressure   = 1e5
	DefaultTotalMoles = 1.0
	DefaultThreshold  = 1.0
	DefaultOptimizer  = "nelder-mead"

	DefaultStart  = 600.0
	DefaultStop   = 1500.0
	DefaultPoints = 101
)

// DefaultBoundaryPhase is the phase modelling the grain boundary.
const DefaultBoundaryPhase = "LIQUID"

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Pressure == 0 {
		c.Pressure = DefaultPressure
	}
	if c.TotalMoles == 0 {
		c.TotalMoles = DefaultTotalMoles
	}
	if len(c.Boundary.Phases) == 0 {
		c.Boundary.Phases = []string{DefaultBoundaryPhase}
	}
	if c.Boundary.DisableGlobalMinimization == nil {
		c.Boundary.DisableGlobalMinimization = boolPtr(true)
	}

	g := &c.Temperatures
	if len(g.Values) == 0 {
		if g.Start == 0 && g.Stop == 0 {
			g.Start, g.Stop = DefaultStart, DefaultStop
		}
		if g.Points == 0 {
			g.Points = DefaultPoints
		}
	}
	if g.Descending == nil {
		g.Descending = boolPtr(true)
	}

	if c.Solver.Optimizer == "" {
		c.Solver.Optimizer = DefaultOptimizer
	}
	if c.Solver.Threshold == 0 {
		c.Solver.Threshold = DefaultThreshold
	}
	if c.Oracle.Kind == "" {
		c.Oracle.Kind = "model"
	}
}

// Parse decodes a YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func boolPtr(b bool) *bool {
	return &b
}
