package circuitbreaker

import (
	"sort"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

// Registry holds one circuit breaker per backend name. It is built once at
// startup and never mutated afterwards, so lookups need no locking.
type Registry struct {
	breakers map[string]*CircuitBreaker
	names    []string
}

// NewRegistry creates a breaker for each name using config. Duplicate names
// share one breaker.
func NewRegistry(names []string, config *Config, logger observability.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}

	r := &Registry{
		breakers: make(map[string]*CircuitBreaker, len(names)),
	}
	for _, name := range names {
		if _, ok := r.breakers[name]; ok {
			continue
		}
		r.breakers[name] = NewCircuitBreaker(name, config, logger, opts...)
		r.names = append(r.names, name)
		logger.Debug("created circuit breaker", observability.String("name", name))
	}
	sort.Strings(r.names)

	return r
}

// Get returns the circuit breaker for name.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	cb, ok := r.breakers[name]
	return cb, ok
}

// Names returns the sorted breaker names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// ResetAll resets all circuit breakers to closed state.
func (r *Registry) ResetAll() {
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Snapshot returns the metrics of every circuit breaker keyed by name.
func (r *Registry) Snapshot() map[string]Metrics {
	snapshot := make(map[string]Metrics, len(r.breakers))
	for name, cb := range r.breakers {
		snapshot[name] = cb.Metrics()
	}
	return snapshot
}
