package consumer

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/titanx/execution-core/internal/router"
)

// rpcRequest is the request-reply payload for both position and
// balance lookups, scoped to one adapter by venue name (spec §4.12,
// §6 "request-reply via router fetch against the named adapter").
type rpcRequest struct {
	Venue string `json:"venue"`
	Asset string `json:"asset,omitempty"`
}

type rpcError struct {
	Error string `json:"error"`
}

// onGetPositions answers titan.rpc.execution.get_positions.v1.> by
// calling the named adapter's GetPositions directly (spec §6).
func (l *Loop) onGetPositions(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		l.respond(msg, rpcError{Error: "malformed request: " + err.Error()})
		return
	}
	adapter, breaker, ok := l.Router.Registry.Get(req.Venue)
	if !ok {
		l.respond(msg, rpcError{Error: "unknown venue: " + req.Venue})
		return
	}
	raw, err := breaker.Execute(func() (interface{}, error) {
		return adapter.GetPositions(context.Background())
	})
	if err != nil {
		l.respond(msg, rpcError{Error: err.Error()})
		return
	}
	l.respond(msg, raw.([]router.Position))
}

// onGetBalances answers titan.rpc.execution.get_balances.v1.> the
// same way, for a named asset.
func (l *Loop) onGetBalances(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		l.respond(msg, rpcError{Error: "malformed request: " + err.Error()})
		return
	}
	adapter, breaker, ok := l.Router.Registry.Get(req.Venue)
	if !ok {
		l.respond(msg, rpcError{Error: "unknown venue: " + req.Venue})
		return
	}
	raw, err := breaker.Execute(func() (interface{}, error) {
		return adapter.GetBalance(context.Background(), req.Asset)
	})
	if err != nil {
		l.respond(msg, rpcError{Error: err.Error()})
		return
	}
	l.respond(msg, raw)
}

func (l *Loop) respond(msg *nats.Msg, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		l.Log.Warnw("consumer: marshal rpc reply", "err", err)
		return
	}
	if err := msg.Respond(raw); err != nil {
		l.Log.Warnw("consumer: rpc respond", "err", err)
	}
}
