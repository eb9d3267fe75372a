package segregation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/gbseg/internal/opt"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/thermotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrainProfileSetsConditionsInGridOrder(t *testing.T) {
	var seen []map[string]float64
	oracle := thermotest.New(func(_ thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		seen = append(seen, conds.Named())
		temp, _ := conds.Value(thermo.CondTemperature)
		return thermo.PotentialVector{-temp, -2 * temp, -3 * temp}, nil
	})

	es, err := thermo.NewElementSet("Co", "Cr", "Ni")
	require.NoError(t, err)
	session, err := oracle.Configure(context.Background(), thermo.System{Elements: es})
	require.NoError(t, err)

	profile := &GrainProfile{
		Session:     session,
		Elements:    es,
		Composition: thermo.CompositionVector{0.25, 0.15},
		Pressure:    1e5,
		TotalMoles:  1,
	}
	refs, err := profile.Compute(context.Background(), []float64{1500, 1200, 600})
	require.NoError(t, err)

	require.Len(t, refs, 3)
	assert.Equal(t, thermo.PotentialVector{-1500, -3000, -4500}, refs[0])
	assert.Equal(t, thermo.PotentialVector{-600, -1200, -1800}, refs[2])

	require.Len(t, seen, 3)
	assert.Equal(t, map[string]float64{"T": 1200, "P": 1e5, "N": 1, "X(Cr)": 0.25, "X(Ni)": 0.15}, seen[1])
}

func TestGrainProfileFailureIsFatal(t *testing.T) {
	calls := 0
	oracle := thermotest.New(func(_ thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		calls++
		temp, _ := conds.Value(thermo.CondTemperature)
		if temp == 900 {
			return nil, thermo.NotConverged("grain interior")
		}
		return thermo.PotentialVector{0, 0}, nil
	})
	session, err := oracle.Configure(context.Background(), thermo.System{Elements: binary(t)})
	require.NoError(t, err)

	profile := &GrainProfile{Session: session, Elements: binary(t), Composition: thermo.CompositionVector{0.2}, Pressure: 1e5, TotalMoles: 1}
	refs, err := profile.Compute(context.Background(), []float64{1000, 900, 800})
	assert.Nil(t, refs)

	var refErr *thermo.ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, 900.0, refErr.Temperature)
	assert.ErrorIs(t, err, thermo.ErrNotConverged)
	assert.Equal(t, 2, calls, "no retry and no further temperatures")
}

func TestRunConfiguresBothSystems(t *testing.T) {
	oracle := linearBoundary(1000, func(float64) float64 { return 0.3 })
	problem := testProblem(t, 1000)

	_, err := Run(context.Background(), oracle, problem, opt.NewNelderMead(opt.DefaultNelderMeadConfig()))
	require.NoError(t, err)

	systems := oracle.Systems()
	require.Len(t, systems, 2)
	assert.Equal(t, []string{grainPhase}, systems[0].Phases)
	assert.False(t, systems[0].DisableGlobalMinimization)
	assert.Equal(t, []string{boundaryPhase}, systems[1].Phases)
	assert.True(t, systems[1].DisableGlobalMinimization)
}

func TestRunConfigurationErrorIsFatal(t *testing.T) {
	oracle := linearBoundary(1000, func(float64) float64 { return 0.3 })
	oracle.ConfigureErr = errors.New("unknown database")

	series, err := Run(context.Background(), oracle, testProblem(t, 1000), opt.NewNelderMead(opt.DefaultNelderMeadConfig()))
	assert.Nil(t, series)

	var cfgErr *thermo.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 0, oracle.Calls())
}

func TestRunReferenceErrorProducesNoSeries(t *testing.T) {
	oracle := thermotest.Failing()

	series, err := Run(context.Background(), oracle, testProblem(t, 1000, 900), opt.NewNelderMead(opt.DefaultNelderMeadConfig()))
	assert.Nil(t, series)

	var refErr *thermo.ReferenceError
	assert.True(t, errors.As(err, &refErr))
	assert.Equal(t, 1000.0, refErr.Temperature)
}

func TestRunRejectsCompositionShape(t *testing.T) {
	problem := testProblem(t, 1000)
	problem.Composition = thermo.CompositionVector{0.2, 0.1}

	_, err := Run(context.Background(), thermotest.Failing(), problem, opt.NewNelderMead(opt.DefaultNelderMeadConfig()))
	assert.Error(t, err)
}

func TestResultSeriesFullAndJSON(t *testing.T) {
	series := NewResultSeries(binary(t))
	series.Append(Outcome{Temperature: 1000, Status: Converged, Composition: thermo.CompositionVector{0.25}, Score: 0.5, Evaluations: 40})
	series.Append(Outcome{Temperature: 900, Status: Undetermined, Score: math.Inf(1), Evaluations: 30})

	full, ok := series.Full(0)
	require.True(t, ok)
	assert.Equal(t, []float64{0.75, 0.25}, full)

	_, ok = series.Full(1)
	assert.False(t, ok)
	assert.Equal(t, 1, series.Converged())
	assert.Equal(t, 70, series.Evaluations())

	data, err := json.Marshal(series)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"elements": ["A", "B"],
		"points": [
			{"temperature": 1000, "status": "converged", "composition": [0.75, 0.25], "score": 0.5, "evaluations": 40, "seed": "baseline"},
			{"temperature": 900, "status": "undetermined", "composition": null, "score": null, "evaluations": 30, "seed": "baseline"}
		]
	}`, string(data))
}

func TestResultSeriesSnapshotIsIndependent(t *testing.T) {
	series := NewResultSeries(binary(t))
	comp := thermo.CompositionVector{0.25}
	series.Append(Outcome{Temperature: 1000, Status: Converged, Composition: comp})

	comp[0] = 0.9
	assert.Equal(t, 0.25, series.At(0).Composition[0])

	snap := series.Snapshot()
	series.Append(Outcome{Temperature: 900})
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, series.Len())
}
