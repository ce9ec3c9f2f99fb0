// Package metrics implements the process-wide, thread-safe counter
// registry described by the design notes: {init, increment, read, reset}.
// Each counter is mirrored onto a Prometheus CounterVec so the same
// increments are scrapeable.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Known counter names, grounded on the observability module's metric
// constants.
const (
	DelegationFailure       = "delegation_failure"
	TenantWriteDenied       = "tenant_write_denied"
	AppendOnlyViolation     = "append_only_violation"
	RateLimitBackendFailure = "rate_limit_backend_failure"
	RateLimitExceeded       = "rate_limit_exceeded"
	IdempotencyConflict     = "idempotency_conflict"
	OperationFailed         = "operation_failed"
)

// Registry is a thread-safe named-counter store. Each instance owns its own
// Prometheus registry so tests can construct a fresh Registry without
// colliding on process-global collector registration.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int
	promReg  *prometheus.Registry
	promVec  *prometheus.CounterVec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_ledger_events_total",
		Help: "Count of observability events, labelled by reason.",
	}, []string{"reason"})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(vec)

	return &Registry{
		counters: make(map[string]int),
		promReg:  promReg,
		promVec:  vec,
	}
}

// Init registers name with a zero count if it does not already exist.
func (r *Registry) Init(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counters[name]; !ok {
		r.counters[name] = 0
	}
}

// Increment increases name's count by one, creating it at 1 if absent.
func (r *Registry) Increment(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name]++
	r.promVec.WithLabelValues(name).Inc()
}

// Read returns name's current count (zero if never initialized or incremented).
func (r *Registry) Read(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Reset clears every counter. Tests must call this between runs since the
// registry is otherwise long-lived for the process.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]int)
	r.promVec.Reset()
}

// Gatherer exposes the underlying Prometheus registry for a /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.promReg
}
