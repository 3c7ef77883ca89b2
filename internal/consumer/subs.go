package consumer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/metrics"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/simulate"
)

// subscribeSideChannels registers every best-effort (non-durable)
// subscription spec §4.12 lists alongside the durable intents
// consumer.
func (l *Loop) subscribeSideChannels() error {
	subs := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{bus.SubjectHalt, l.onHalt},
		{bus.SubjectPolicyUpdate, l.onPolicyUpdate},
		{bus.SubjectHeartbeat, l.onHeartbeat},
		{bus.SubjectRiskState, l.onStateUpdate},
		{bus.SubjectFlatten, l.onFlatten},
		{bus.SubjectTickerWildcard, l.onTicker},
		{bus.SubjectGetPositionsWildcard, l.onGetPositions},
		{bus.SubjectGetBalancesWildcard, l.onGetBalances},
	}
	for _, s := range subs {
		if _, err := l.NC.Subscribe(s.subject, s.handler); err != nil {
			return err
		}
	}
	return nil
}

type haltCommand struct {
	Halt bool `json:"halt"`
}

// onHalt flips the process-wide halt flag (spec §4.12).
func (l *Loop) onHalt(msg *nats.Msg) {
	env, err := l.decodeEnvelope(msg.Data)
	if err != nil {
		l.Log.Warnw("consumer: malformed halt command", "err", err)
		return
	}
	var cmd haltCommand
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		l.Log.Warnw("consumer: malformed halt payload", "err", err)
		return
	}
	l.halted.Store(cmd.Halt)
	l.Log.Infow("consumer: halt flag updated", "halt", cmd.Halt)
}

// onPolicyUpdate replaces the active risk policy and logs the diff
// (spec §4.12).
func (l *Loop) onPolicyUpdate(msg *nats.Msg) {
	env, err := l.decodeEnvelope(msg.Data)
	if err != nil {
		l.Log.Warnw("consumer: malformed policy update envelope", "err", err)
		return
	}
	var p risk.Policy
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		l.Log.Warnw("consumer: malformed policy payload", "err", err)
		return
	}
	old := l.Guard.Policy()
	l.Guard.SetPolicy(&p)
	l.Log.Infow("consumer: risk policy replaced",
		"old_version", old.Version, "new_version", p.Version,
		"old_state", old.CurrentState, "new_state", p.CurrentState)
}

// onHeartbeat stamps RiskGuard liveness (spec §4.12).
func (l *Loop) onHeartbeat(msg *nats.Msg) {
	l.Guard.Heartbeat(l.Clock.NowMillis())
}

type stateUpdateCommand struct {
	State risk.State `json:"state"`
}

// onStateUpdate applies a direct operator risk-state override (spec §4.12).
func (l *Loop) onStateUpdate(msg *nats.Msg) {
	env, err := l.decodeEnvelope(msg.Data)
	if err != nil {
		l.Log.Warnw("consumer: malformed state update envelope", "err", err)
		return
	}
	var cmd stateUpdateCommand
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		l.Log.Warnw("consumer: malformed state update payload", "err", err)
		return
	}
	l.Guard.SetState(cmd.State)
	l.Log.Infow("consumer: risk state set by operator", "state", cmd.State)
}

type tickerPayload struct {
	Symbol   string          `json:"symbol"`
	BestBid  decimal.Decimal `json:"best_bid"`
	BestAsk  decimal.Decimal `json:"best_ask"`
	TSMillis int64           `json:"ts_millis"`
}

// onTicker updates the last-known top of book, refreshes any open
// position's mark price, and recomputes exposure (spec §4.12).
func (l *Loop) onTicker(msg *nats.Msg) {
	env, err := l.decodeEnvelope(msg.Data)
	if err != nil {
		l.Log.Warnw("consumer: malformed ticker envelope", "err", err)
		return
	}
	var t tickerPayload
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		l.Log.Warnw("consumer: malformed ticker payload", "err", err)
		return
	}
	l.Ticker.Set(simulate.TopOfBook{Symbol: t.Symbol, BestBid: t.BestBid, BestAsk: t.BestAsk, TSMillis: t.TSMillis})

	mark := t.BestBid.Add(t.BestAsk).Div(decimal.NewFromInt(2))
	if err := l.Shadow.ApplyMark(context.Background(), t.Symbol, mark, t.TSMillis); err != nil {
		l.Log.Warnw("consumer: apply mark", "symbol", t.Symbol, "err", err)
		return
	}
	exposure := l.Shadow.Exposure()
	metrics.ExposureNotional.WithLabelValues("long").Set(toFloat(exposure.LongNotional))
	metrics.ExposureNotional.WithLabelValues("short").Set(toFloat(exposure.ShortNotional))
	metrics.ExposureNotional.WithLabelValues("net").Set(toFloat(exposure.Net))
	metrics.ExposureNotional.WithLabelValues("gross").Set(toFloat(exposure.Gross))
	metrics.OpenPositions.Set(float64(exposure.LongCount + exposure.ShortCount))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// rpcSubjectSuffix extracts the trailing segment of a dotted subject.
// The RPC handlers do not call it; they scope a request to one adapter
// by the venue field of the request body.
func rpcSubjectSuffix(subject string) string {
	parts := strings.Split(subject, ".")
	return parts[len(parts)-1]
}
