package server

import (
	"errors"
	"testing"
	"time"

	"github.com/cwbudde/gbseg/internal/config"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/thermotest"
)

// stubOracle: the grain interior has equal potentials; the boundary
// potentials match them at x(B) = 0.3.
func stubOracle() *thermotest.Oracle {
	return thermotest.New(func(sys thermo.System, conds thermo.ConditionSet) (thermo.PotentialVector, error) {
		if len(sys.Phases) == 0 || sys.Phases[0] != "LIQUID" {
			return thermo.PotentialVector{-1000, -1000}, nil
		}
		x, _ := conds.Value(thermo.Fraction("B"))
		return thermo.PotentialVector{0, -1000 * (x - 0.3)}, nil
	})
}

func stubFactory(o thermo.Oracle) OracleFactory {
	return func(*config.Config) (thermo.Oracle, func() error, error) {
		return o, func() error { return nil }, nil
	}
}

func failingFactory(err error) OracleFactory {
	return func(*config.Config) (thermo.Oracle, func() error, error) {
		return nil, nil, err
	}
}

func testConfig(temps ...float64) JobConfig {
	c := config.Config{
		Elements:     []string{"A", "B"},
		Composition:  []float64{0.2},
		Database:     "stub",
		Temperatures: config.TemperatureGrid{Values: temps},
	}
	c.ApplyDefaults()
	return c
}

// waitForState polls until the job reaches a terminal state.
func waitForState(t *testing.T, jm *JobManager, id string) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := jm.GetJob(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

var errBackendDown = errors.New("backend down")
