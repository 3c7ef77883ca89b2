package router

import (
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Registry maps a lowercased venue name to its adapter, each behind
// its own circuit breaker (DimaJoyti/go-coffee, ajitpratap0/cryptofunk
// idiom: a breaker per downstream dependency).
type Registry struct {
	adapters map[string]Adapter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Register adds an adapter under its lowercased venue name.
func (r *Registry) Register(a Adapter) {
	name := strings.ToLower(a.Name())
	r.adapters[name] = a
	r.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Get returns the adapter and breaker registered under venue, if any.
func (r *Registry) Get(venue string) (Adapter, *gobreaker.CircuitBreaker, bool) {
	name := strings.ToLower(venue)
	a, ok := r.adapters[name]
	if !ok {
		return nil, nil, false
	}
	return a, r.breakers[name], true
}

// Venues lists every registered venue name.
func (r *Registry) Venues() []string {
	out := make([]string, 0, len(r.adapters))
	for v := range r.adapters {
		out = append(out, v)
	}
	return out
}
