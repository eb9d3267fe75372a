package config

import (
	"fmt"
	"slices"

	"github.com/cwbudde/gbseg/internal/opt"
	"github.com/cwbudde/gbseg/internal/segregation"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/mitchellh/mapstructure"
)

// Grid returns the temperature grid in sweep order. A range is spaced evenly
// between start and stop and swept from high to low unless descending is false.
func (g TemperatureGrid) Grid() []float64 {
	if len(g.Values) > 0 {
		return slices.Clone(g.Values)
	}

	lo, hi := min(g.Start, g.Stop), max(g.Start, g.Stop)
	grid := linspace(lo, hi, g.Points)
	if g.Descending == nil || *g.Descending {
		slices.Reverse(grid)
	}
	return grid
}

func linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Problem builds the segregation problem described by c.
func (c *Config) Problem() (segregation.Problem, error) {
	es, err := thermo.NewElementSet(c.Elements...)
	if err != nil {
		return segregation.Problem{}, &ValidationError{Field: "Config.Elements", Reason: err.Error()}
	}
	disable := c.Boundary.DisableGlobalMinimization == nil || *c.Boundary.DisableGlobalMinimization
	return segregation.Problem{
		Database:                  c.Database,
		Elements:                  es,
		Composition:               thermo.CompositionVector(slices.Clone(c.Composition)),
		GrainPhases:               slices.Clone(c.Grain.Phases),
		BoundaryPhases:            slices.Clone(c.Boundary.Phases),
		DisableGlobalMinimization: disable,
		Pressure:                  c.Pressure,
		TotalMoles:                c.TotalMoles,
		Temperatures:              c.Temperatures.Grid(),
	}, nil
}

// BuildOptimizer creates the optimizer selected by the solver section.
func (s SolverConfig) BuildOptimizer() (opt.Optimizer, error) {
	switch s.Optimizer {
	case "", "nelder-mead":
		return opt.NewNelderMead(opt.NelderMeadConfig{
			MaxEvaluations:    s.MaxEvaluations,
			MaxIterations:     s.MaxIterations,
			SimplexSize:       s.SimplexSize,
			FunctionTolerance: s.FunctionTolerance,
			Patience:          s.Patience,
		}), nil
	case "mayfly":
		return opt.NewMayfly(opt.MayflyConfig{
			MaxIterations: s.MaxIterations,
			PopSize:       s.PopulationSize,
			Seed:          s.Seed,
		}), nil
	default:
		return nil, &ValidationError{Field: "Config.Solver.Optimizer", Reason: fmt.Sprintf("unknown optimizer %q", s.Optimizer)}
	}
}

// Options returns the solver options for the acceptance threshold.
func (s SolverConfig) Options() []segregation.Option {
	return []segregation.Option{segregation.WithThreshold(s.Threshold)}
}

// DecodeOptions decodes the backend options into target, a pointer to the
// backend's option struct. Unknown keys are rejected; durations may be
// given as strings such as "30s".
func (o OracleConfig) DecodeOptions(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := dec.Decode(o.Options); err != nil {
		return &ValidationError{Field: "Config.Oracle.Options", Reason: err.Error()}
	}
	return nil
}
