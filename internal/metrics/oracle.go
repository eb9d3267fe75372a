package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// InstrumentOracle counts and times every evaluation made through oracle.
func (m *Metrics) InstrumentOracle(oracle thermo.Oracle) thermo.Oracle {
	if m == nil {
		return oracle
	}
	return &instrumented{inner: oracle, m: m}
}

type instrumented struct {
	inner thermo.Oracle
	m     *Metrics
}

func (o *instrumented) Configure(ctx context.Context, sys thermo.System) (thermo.Session, error) {
	session, err := o.inner.Configure(ctx, sys)
	if err != nil {
		return nil, err
	}
	return thermo.NewSession(sys, func(ctx context.Context, _ thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
		s := session
		for c, v := range conds {
			s = s.With(c, v)
		}

		start := time.Now()
		eq, err := s.Evaluate(ctx)
		o.m.oracleDuration.Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			o.m.oracleEvaluations.WithLabelValues("converged").Inc()
		case errors.Is(err, thermo.ErrNotConverged):
			o.m.oracleEvaluations.WithLabelValues("not_converged").Inc()
		default:
			o.m.oracleEvaluations.WithLabelValues("error").Inc()
		}
		return eq, err
	}), nil
}
