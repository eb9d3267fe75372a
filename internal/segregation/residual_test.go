package segregation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/thermotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResidualZeroForIdenticalPotentials(t *testing.T) {
	es, err := thermo.NewElementSet("Co", "Cr", "Fe")
	require.NoError(t, err)

	mu := thermo.PotentialVector{-52000, -61000, -48000}
	oracle := thermotest.New(func(thermo.System, thermo.ConditionSet) (thermo.PotentialVector, error) {
		return mu, nil
	})
	session, err := oracle.Configure(context.Background(), thermo.System{Database: "stub", Elements: es})
	require.NoError(t, err)

	scorer := NewResidualScorer(session, es)
	score := scorer.Score(context.Background(), thermo.CompositionVector{0.2, 0.3}, mu, 1000)
	assert.Equal(t, 0.0, score)
}

func TestResidualMatchesDifferencesNotAbsolutes(t *testing.T) {
	es := binary(t)
	// Boundary potentials are the reference shifted by a constant: same differences.
	oracle := thermotest.New(func(thermo.System, thermo.ConditionSet) (thermo.PotentialVector, error) {
		return thermo.PotentialVector{-500, -800}, nil
	})
	session, err := oracle.Configure(context.Background(), thermo.System{Elements: es})
	require.NoError(t, err)

	scorer := NewResidualScorer(session, es)
	assert.Equal(t, 0.0, scorer.Score(context.Background(), thermo.CompositionVector{0.4}, thermo.PotentialVector{100, -200}, 900))
	// Difference 300 vs 301: residual 1.
	assert.Equal(t, 1.0, scorer.Score(context.Background(), thermo.CompositionVector{0.4}, thermo.PotentialVector{100, -201}, 900))
}

func TestResidualKnownValue(t *testing.T) {
	oracle := linearBoundary(1000, func(float64) float64 { return 0.3 })
	scorer := boundaryScorer(t, oracle)

	// k·(x − 0.3) = 1000·0.01 = 10, squared = 100
	score := scorer.Score(context.Background(), thermo.CompositionVector{0.31}, thermo.PotentialVector{0, 0}, 1000)
	assert.InDelta(t, 100.0, score, 1e-9)
}

func TestResidualNonNegative(t *testing.T) {
	oracle := linearBoundary(1000, func(T float64) float64 { return 0.3 - 0.0002*(T-1000) })
	scorer := boundaryScorer(t, oracle)

	for _, x := range []float64{-0.5, 0, 0.1, 0.3, 0.32, 0.9, 1.5} {
		for _, temp := range []float64{800, 900, 1000} {
			score := scorer.Score(context.Background(), thermo.CompositionVector{x}, thermo.PotentialVector{-3, 7}, temp)
			assert.GreaterOrEqual(t, score, 0.0, "x=%g T=%g", x, temp)
			assert.False(t, math.IsInf(score, 0))
		}
	}
}

func TestResidualInfiniteOnOracleFailure(t *testing.T) {
	scorer := boundaryScorer(t, thermotest.Failing())

	score := scorer.Score(context.Background(), thermo.CompositionVector{0.3}, thermo.PotentialVector{0, 0}, 1000)
	assert.True(t, math.IsInf(score, 1))
}

func TestResidualInfiniteOnMissingPotential(t *testing.T) {
	es := binary(t)
	session := thermo.NewSession(thermo.System{Elements: es}, func(context.Context, thermo.System, thermo.ConditionSet) (thermo.Equilibrium, error) {
		return thermo.ValueMap{thermo.MU("A"): 1}, nil
	})

	scorer := NewResidualScorer(session, es)
	assert.True(t, math.IsInf(scorer.Score(context.Background(), thermo.CompositionVector{0.3}, thermo.PotentialVector{0, 0}, 1000), 1))
}

func TestResidualInfiniteOnShapeMismatch(t *testing.T) {
	scorer := boundaryScorer(t, linearBoundary(1, func(float64) float64 { return 0.3 }))

	assert.True(t, math.IsInf(scorer.Score(context.Background(), thermo.CompositionVector{0.3, 0.1}, thermo.PotentialVector{0, 0}, 1000), 1))
	assert.True(t, math.IsInf(scorer.Score(context.Background(), thermo.CompositionVector{0.3}, thermo.PotentialVector{0}, 1000), 1))
}

func TestResidualSetsCandidateConditions(t *testing.T) {
	var seen thermo.ConditionSet
	oracle := thermotest.New(func(_ thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		seen = conds
		return thermo.PotentialVector{0, 0}, nil
	})
	scorer := boundaryScorer(t, oracle)

	scorer.Score(context.Background(), thermo.CompositionVector{0.27}, thermo.PotentialVector{0, 0}, 950)

	assert.Equal(t, map[string]float64{
		"T":    950,
		"P":    1e5,
		"N":    1,
		"X(B)": 0.27,
	}, seen.Named())
}

func TestResidualLogsBackendErrorsAsWarnings(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	es := binary(t)
	notConverged := thermotest.New(func(thermo.System, thermo.ConditionSet) (thermo.PotentialVector, error) {
		return nil, thermo.NotConverged("no equilibrium")
	})
	unavailable := thermotest.New(func(thermo.System, thermo.ConditionSet) (thermo.PotentialVector, error) {
		return nil, errors.New("equilibrium service: connection refused")
	})

	for _, oracle := range []*thermotest.Oracle{notConverged, unavailable} {
		session, err := oracle.Configure(context.Background(), thermo.System{Elements: es})
		require.NoError(t, err)
		score := NewResidualScorer(session, es).Score(context.Background(), thermo.CompositionVector{0.4}, thermo.PotentialVector{0, 0}, 900)
		assert.True(t, math.IsInf(score, 1))
	}

	out := buf.String()
	assert.NotContains(t, out, "no equilibrium", "non-convergence stays at debug level")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "connection refused")
}
