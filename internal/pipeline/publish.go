package pipeline

import (
	"encoding/json"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/shadow"
	"github.com/titanx/execution-core/internal/simulate"
)

// publishEvent wraps payload in a signed envelope and fires it at
// subject. Publish failures are logged, never returned: outgoing
// events are fire-and-forget and must not block intent ack (spec §5).
func (p *Pipeline) publishEvent(subject, msgType, correlationID string, payload interface{}) {
	if p.Bus == nil || p.Envelope == nil {
		return
	}
	env, err := p.Envelope.Wrap(msgType, payload)
	if err != nil {
		p.Log.Warnw("pipeline: wrap envelope", "subject", subject, "err", err)
		return
	}
	env.CorrelationID = correlationID
	raw, err := json.Marshal(env)
	if err != nil {
		p.Log.Warnw("pipeline: marshal envelope", "subject", subject, "err", err)
		return
	}
	if err := p.Bus.Publish(subject, raw); err != nil {
		p.Log.Warnw("pipeline: publish", "subject", subject, "err", err)
	}
}

type rejectEvent struct {
	SignalID string `json:"signal_id"`
	Reason   string `json:"reason"`
}

func (p *Pipeline) publishReject(it *model.Intent, reason, correlationID string) {
	p.publishEvent(bus.SubjectReject, "reject", correlationID, rejectEvent{SignalID: it.SignalID, Reason: reason})
}

// PublishReject lets callers outside the pipeline (the consumer's
// armed gate) emit the same reject event Execute's risk gate does.
func (p *Pipeline) PublishReject(it *model.Intent, reason, correlationID string) {
	p.publishReject(it, reason, correlationID)
}

type expiredEvent struct {
	SignalID string `json:"signal_id"`
	TSignal  int64  `json:"t_signal"`
}

func (p *Pipeline) publishExpired(it *model.Intent, correlationID string) {
	p.publishEvent(bus.SubjectDLQ, "expired", correlationID, expiredEvent{SignalID: it.SignalID, TSignal: it.TSignal})
}

func (p *Pipeline) publishShadowFill(sf simulate.ShadowFill, correlationID string) {
	p.publishEvent(bus.SubjectShadowFill, "shadow_fill", correlationID, sf)
}

func (p *Pipeline) publishFill(venue string, it *model.Intent, resp *router.PlaceOrderResponse, correlationID string) {
	subject := bus.FillSubject(venue, Account, it.Symbol)
	report := model.FillReport{
		FillID:        resp.OrderID,
		SignalID:      it.SignalID,
		ClientOrderID: resp.ClientOrderID,
		ExecutionID:   resp.OrderID,
		OrderID:       resp.OrderID,
		Symbol:        it.Symbol,
		Side:          inferSide(it),
		Price:         resp.AvgPrice,
		Qty:           resp.ExecutedQty,
		Fee:           resp.Fee,
		FeeCurrency:   resp.FeeAsset,
		TSignal:       it.TSignal,
		TIngress:      it.TIngress,
		TDecision:     it.TDecision,
		TAck:          resp.TAck,
		TExchange:     resp.TExchange,
	}
	p.publishEvent(subject, "fill", correlationID, report)
}

func (p *Pipeline) publishShadowEvents(events []shadow.Event, correlationID string) {
	for _, ev := range events {
		switch ev.Kind {
		case shadow.EventTradeCompleted:
			p.publishEvent(bus.SubjectTradeCompleted, "trade_completed", correlationID, ev.Trade)
		default:
			p.publishEvent(bus.SubjectPosition, string(ev.Kind), correlationID, ev.Position)
		}
	}
}
