// Package cache memoizes equilibrium evaluations in Redis.
//
// Results are keyed by the system (database, elements, phase selection,
// global minimization) and the canonical condition set. Non-converged
// results are cached as well, so a failing point is not recomputed.
// Redis failures never fail an evaluation; the inner oracle is used instead.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwbudde/gbseg/internal/thermo"
	backend "github.com/redis/go-redis/v9"
)

// Oracle decorates an oracle with a Redis evaluation cache.
type Oracle struct {
	inner  thermo.Oracle
	client *backend.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*Oracle)

// WithTTL sets the expiration of cached results.
func WithTTL(ttl time.Duration) Option {
	return func(o *Oracle) {
		o.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Oracle) {
		o.prefix = prefix
	}
}

// New creates a cache connecting to the Redis server at address.
func New(inner thermo.Oracle, address string, opts ...Option) *Oracle {
	return NewFromClient(inner, backend.NewClient(&backend.Options{Addr: address}), opts...)
}

// NewFromClient creates a cache from an existing client.
func NewFromClient(inner thermo.Oracle, client *backend.Client, opts ...Option) *Oracle {
	o := &Oracle{
		inner:  inner,
		client: client,
		prefix: "gbseg:eq:",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// entry is the cached form of one evaluation.
type entry struct {
	Converged bool               `json:"converged"`
	Values    map[string]float64 `json:"values,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

// Stats reports cache hits and misses since creation.
func (o *Oracle) Stats() (hits, misses int64) {
	return o.hits.Load(), o.misses.Load()
}

// Close closes the redis client.
func (o *Oracle) Close() error {
	return o.client.Close()
}

func (o *Oracle) Configure(ctx context.Context, sys thermo.System) (thermo.Session, error) {
	inner, err := o.inner.Configure(ctx, sys)
	if err != nil {
		return nil, err
	}
	return thermo.NewSession(sys, func(ctx context.Context, sys thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
		return o.evaluate(ctx, inner, sys, conds)
	}), nil
}

func (o *Oracle) key(sys thermo.System, conds thermo.ConditionSet) string {
	return o.prefix + sys.Key() + "#" + conds.Key()
}

func (o *Oracle) evaluate(ctx context.Context, inner thermo.Session, sys thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
	key := o.key(sys, conds)

	if e, ok := o.load(ctx, key); ok {
		o.hits.Add(1)
		return e.result()
	}
	o.misses.Add(1)

	session := inner
	for c, v := range conds {
		session = session.With(c, v)
	}
	eq, err := session.Evaluate(ctx)

	switch {
	case err == nil:
		e, encErr := encode(eq, sys.Elements)
		if encErr != nil {
			// The backend result cannot be represented; serve it uncached.
			slog.Debug("Skipping cache store", "key", key, "error", encErr)
			return eq, nil
		}
		o.store(ctx, key, e)
	case errors.Is(err, thermo.ErrNotConverged):
		o.store(ctx, key, entry{Reason: err.Error()})
	}
	return eq, err
}

func (o *Oracle) load(ctx context.Context, key string) (entry, bool) {
	val, err := o.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != backend.Nil {
			slog.Warn("Cache lookup failed", "key", key, "error", err)
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(val, &e); err != nil {
		slog.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		return entry{}, false
	}
	return e, true
}

func (o *Oracle) store(ctx context.Context, key string, e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := o.client.Set(ctx, key, data, o.ttl).Err(); err != nil {
		slog.Warn("Cache store failed", "key", key, "error", err)
	}
}

func encode(eq thermo.Equilibrium, elements thermo.ElementSet) (entry, error) {
	e := entry{Converged: true, Values: make(map[string]float64, len(elements)+1)}
	for _, el := range elements {
		v, err := eq.Value(thermo.MU(el))
		if err != nil {
			return entry{}, err
		}
		e.Values[thermo.MU(el).String()] = v
	}
	if gm, err := eq.Value(thermo.GM); err == nil {
		e.Values[thermo.GM.String()] = gm
	}
	return e, nil
}

func (e entry) result() (thermo.Equilibrium, error) {
	if !e.Converged {
		return nil, thermo.NotConverged("%s (cached)", e.Reason)
	}
	values := make(thermo.ValueMap, len(e.Values))
	for name, v := range e.Values {
		p, err := thermo.ParseProperty(name)
		if err != nil {
			return nil, fmt.Errorf("corrupt cache entry: %w", err)
		}
		values[p] = v
	}
	return values, nil
}

var _ thermo.Oracle = (*Oracle)(nil)
