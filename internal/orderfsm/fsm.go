// Package orderfsm implements the order lifecycle state machine of
// spec §4.4: a guarded transition table plus a per-order transition
// log. No state-machine library appears anywhere in the retrieval
// pack, so this is hand-rolled (see SPEC_FULL.md §B).
package orderfsm

import (
	"fmt"
	"sync"
)

// State is one order lifecycle state.
type State string

const (
	Received    State = "Received"
	Validated   State = "Validated"
	Accepted    State = "Accepted"
	Sent        State = "Sent"
	Acked       State = "Acked"
	PartialFill State = "PartialFill"
	Filled      State = "Filled"
	Canceled    State = "Canceled"
	Reconciled  State = "Reconciled"
	Rejected    State = "Rejected"
	Failed      State = "Failed"
)

// transitions enumerates every legal (from -> to) edge (spec §4.4).
var transitions = map[State]map[State]bool{
	Received:    {Validated: true, Rejected: true, Failed: true},
	Validated:   {Accepted: true, Rejected: true, Failed: true},
	Accepted:    {Sent: true, Rejected: true, Failed: true},
	Sent:        {Acked: true, Failed: true},
	Acked:       {PartialFill: true, Filled: true, Canceled: true, Failed: true},
	PartialFill: {PartialFill: true, Filled: true, Canceled: true, Failed: true},
	Filled:      {Reconciled: true},
	Canceled:    {Reconciled: true},
	Reconciled:  {},
	Rejected:    {},
	Failed:      {},
}

// Transition is one appended log entry (spec §3, §4.4).
type Transition struct {
	From      State  `json:"from"`
	To        State  `json:"to"`
	TSMillis  int64  `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Order tracks one order's lifecycle state and transition log.
type Order struct {
	mu    sync.Mutex
	State State
	Log   []Transition
}

// NewOrder constructs an order in the Received state.
func NewOrder(nowMillis int64) *Order {
	o := &Order{State: Received}
	o.Log = append(o.Log, Transition{From: "", To: Received, TSMillis: nowMillis})
	return o
}

// Apply attempts the (current -> to) transition. An illegal
// transition is refused: the error is returned, the order's state is
// unchanged, and nothing is appended to the log.
func (o *Order) Apply(to State, nowMillis int64, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	allowed, ok := transitions[o.State]
	if !ok || !allowed[to] {
		return fmt.Errorf("orderfsm: illegal transition %s -> %s", o.State, to)
	}
	o.Log = append(o.Log, Transition{From: o.State, To: to, TSMillis: nowMillis, Reason: reason})
	o.State = to
	return nil
}

// TotalLatencyMillis is last_timestamp - first_timestamp across the
// transition log (spec §4.4).
func (o *Order) TotalLatencyMillis() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Log) < 2 {
		return 0
	}
	return o.Log[len(o.Log)-1].TSMillis - o.Log[0].TSMillis
}

// Snapshot returns the current state and a copy of the transition log.
func (o *Order) Snapshot() (State, []Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	logCopy := append([]Transition(nil), o.Log...)
	return o.State, logCopy
}
