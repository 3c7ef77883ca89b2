package pipeline

import (
	"sync"

	"github.com/titanx/execution-core/internal/orderfsm"
)

// OrderTracker holds one orderfsm.Order per client order id, so the
// pipeline's per-leg lifecycle (spec §4.4) is observable independent
// of the coarser accepted/rejected Result the consumer acts on.
type OrderTracker struct {
	mu     sync.Mutex
	orders map[string]*orderfsm.Order
}

// NewOrderTracker constructs an empty tracker.
func NewOrderTracker() *OrderTracker {
	return &OrderTracker{orders: make(map[string]*orderfsm.Order)}
}

// Start begins tracking a new order id in the Received state and
// immediately applies the Validated and Accepted transitions: by the
// time a leg reaches fan-out, the intent has already cleared
// validation (consumer) and the risk gate (step 1), so those two
// edges are folded in here rather than re-derived per leg.
func (t *OrderTracker) Start(clientOrderID string, nowMillis int64) *orderfsm.Order {
	o := orderfsm.NewOrder(nowMillis)
	_ = o.Apply(orderfsm.Validated, nowMillis, "intent validated")
	_ = o.Apply(orderfsm.Accepted, nowMillis, "risk gate passed")

	t.mu.Lock()
	t.orders[clientOrderID] = o
	t.mu.Unlock()
	return o
}

// Get returns the tracked order, if any.
func (t *OrderTracker) Get(clientOrderID string) (*orderfsm.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[clientOrderID]
	return o, ok
}

// Snapshot returns a map of every currently tracked order's state,
// for diagnostics.
func (t *OrderTracker) Snapshot() map[string]orderfsm.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]orderfsm.State, len(t.orders))
	for id, o := range t.orders {
		st, _ := o.Snapshot()
		out[id] = st
	}
	return out
}
