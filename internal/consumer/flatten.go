package consumer

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/titanx/execution-core/internal/model"
)

// SourceRiskFlatten tags flatten-synthesized intents so the router's
// default routing rules send them to the single-venue default path
// (spec §4.6, §4.12).
const SourceRiskFlatten = "RiskFlatten"

// onFlatten iterates every open position and synthesizes a reduce-only
// market close intent per symbol, routed like any other intent (spec
// §4.12 "Flatten command").
func (l *Loop) onFlatten(msg *nats.Msg) {
	ctx := context.Background()
	now := l.Clock.NowMillis()

	for _, pos := range l.Shadow.AllPositions() {
		kind := model.KindCloseLong
		if pos.Side == model.SideShort {
			kind = model.KindCloseShort
		}
		it := &model.Intent{
			SignalID:   l.Clock.NewID(),
			Symbol:     pos.Symbol,
			Direction:  model.DirectionFlat,
			Kind:       kind,
			Size:       pos.Size,
			Status:     model.StatusPending,
			TSignal:    now,
			Source:     SourceRiskFlatten,
			FilledSize: decimal.Zero,
		}
		result := l.Pipeline.Execute(ctx, it, "flatten")
		if !result.Accepted {
			l.Log.Warnw("consumer: flatten leg not accepted", "symbol", pos.Symbol, "reason", result.RejectReason)
		}
	}
}
