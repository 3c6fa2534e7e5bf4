// Package registry indexes the signals of one component tree by identity.
//
// A Registry is an explicit object owned by the application; there is no
// process-wide instance. Observers address signals by identity only, so
// ChangeValue is the entry point for every external mutation.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/metric"
	"github.com/c360/simucore/signal"
)

// Registry maps identities to signals. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	signals map[component.ID]signal.Base

	logger  *slog.Logger
	metrics *metric.Metrics
}

var _ signal.Registrar = (*Registry)(nil)

// Option configures a Registry
type Option func(*Registry)

// WithMetrics reports the signal count and mutation outcomes through the
// registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(r *Registry) {
		if registry != nil {
			r.metrics = registry.CoreMetrics()
		}
	}
}

// New creates an empty registry. A nil logger falls back to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		signals: make(map[component.ID]signal.Base),
		logger:  logger.With("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register indexes sig by its identity. A second signal with the same
// identity is rejected with ErrIdentityCollision.
func (r *Registry) Register(sig signal.Base) error {
	if sig == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Registry", "Register", "nil signal")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := sig.ID()
	if existing, ok := r.signals[id]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s and %s share id %d", errors.ErrIdentityCollision, existing.Name(), sig.Name(), id),
			"Registry", "Register", "identity check")
	}
	r.signals[id] = sig
	r.reportSize()
	return nil
}

// Unregister removes id and reports whether it was present
func (r *Registry) Unregister(id component.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[id]; !ok {
		return false
	}
	delete(r.signals, id)
	r.reportSize()
	return true
}

// UnregisterAll removes every listed identity, typically the result of
// component.Tree.Destroy, and returns how many were present.
func (r *Registry) UnregisterAll(ids []component.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.signals[id]; ok {
			delete(r.signals, id)
			n++
		}
	}
	r.reportSize()
	return n
}

// reportSize updates the gauge; caller holds mu.
func (r *Registry) reportSize() {
	if r.metrics != nil {
		r.metrics.SignalsTotal.Set(float64(len(r.signals)))
	}
}

// Find returns the signal registered under id
func (r *Registry) Find(id component.ID) (signal.Base, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.signals[id]
	return sig, ok
}

// ChangeValue applies value to the signal registered under id. An unknown id
// is a silent no-op reported as false. The outcome is logged and counted.
func (r *Registry) ChangeValue(id component.ID, value string) (signal.Result, bool) {
	sig, ok := r.Find(id)
	if !ok {
		r.logger.Debug("Mutation for unknown signal ignored", "id", id)
		if r.metrics != nil {
			r.metrics.MutationsTotal.WithLabelValues("unknown_id").Inc()
		}
		return signal.Result{}, false
	}

	res := sig.SetValueFromString(value)
	if res.OK() {
		r.logger.Debug("Signal updated", "id", id, "message", res.Message)
	} else {
		r.logger.Warn("Signal update rejected", "id", id, "status", res.Status.String(), "message", res.Message)
	}
	if r.metrics != nil {
		r.metrics.MutationsTotal.WithLabelValues(res.Status.String()).Inc()
	}
	return res, true
}

// IDs returns every registered identity in ascending order
func (r *Registry) IDs() []component.ID {
	r.mu.RLock()
	ids := make([]component.ID, 0, len(r.signals))
	for id := range r.signals {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of registered signals
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signals)
}
