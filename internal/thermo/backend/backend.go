// Package backend builds the equilibrium oracle selected by a sweep configuration.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/gbseg/internal/config"
	"github.com/cwbudde/gbseg/internal/metrics"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/cache"
	"github.com/cwbudde/gbseg/internal/thermo/model"
	"github.com/cwbudde/gbseg/internal/thermo/remote"
)

// Oracle is a configured backend. Close releases cache connections.
type Oracle struct {
	thermo.Oracle
	closers []func() error
}

// Close releases resources held by the backend.
func (o *Oracle) Close() error {
	var first error
	for _, c := range o.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open builds the backend described by cfg: the oracle kind, an optional
// Redis cache in front of it, and metrics instrumentation when m is not nil.
// Instrumentation sits outside the cache so cached evaluations are counted.
func Open(cfg *config.Config, m *metrics.Metrics) (*Oracle, error) {
	var inner thermo.Oracle
	switch cfg.Oracle.Kind {
	case "model", "":
		var opts model.Options
		if err := cfg.Oracle.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		o, err := model.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open model oracle: %w", err)
		}
		inner = o
	case "remote":
		var opts remote.Options
		if err := cfg.Oracle.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		c, err := remote.New(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote oracle: %w", err)
		}
		inner = c
	default:
		return nil, &config.ValidationError{Field: "Config.Oracle.Kind", Reason: fmt.Sprintf("unknown oracle %q", cfg.Oracle.Kind)}
	}

	out := &Oracle{}
	if cfg.Cache != nil {
		opts := []cache.Option{cache.WithTTL(cfg.Cache.TTL)}
		if cfg.Cache.Prefix != "" {
			opts = append(opts, cache.WithPrefix(cfg.Cache.Prefix))
		}
		c := cache.New(inner, cfg.Cache.RedisAddr, opts...)
		out.closers = append(out.closers, c.Close)
		inner = c
		slog.Info("Evaluation cache enabled", "redis", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	out.Oracle = m.InstrumentOracle(inner)
	return out, nil
}
