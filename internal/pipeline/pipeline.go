// Package pipeline implements spec §4.10, the execution pipeline: the
// single method that turns one validated intent into a risk check, a
// shadow-fill measurement, an order decision, a router fan-out, and the
// shadow-state updates those fills produce.
package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/titanx/execution-core/internal/bus"
	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/decision"
	"github.com/titanx/execution-core/internal/envelope"
	"github.com/titanx/execution-core/internal/metrics"
	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/orderfsm"
	"github.com/titanx/execution-core/internal/ratelimit"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/shadow"
	"github.com/titanx/execution-core/internal/simulate"
)

// MarketData is the pipeline's read-only view of top-of-book ticker
// state (spec §6 "core only reads it").
type MarketData interface {
	TopOfBook(symbol string) (simulate.TopOfBook, bool)
}

// Account identifies the account-scoped portion of the fill subject
// (spec §6's `{account}` segment); the engine runs single-account, so
// this is a fixed label rather than a lookup.
const Account = "core"

// Pipeline wires every collaborator the execution path touches. Router
// fan-out legs run outside any per-venue rate-limit wait here: the
// router's adapters are expected to self-throttle (spec §6), but
// Limiters is kept so callers needing an explicit wait (e.g. before
// building a request) have it available.
type Pipeline struct {
	Guard    *risk.Guard
	Shadow   *shadow.State
	Router   *router.Router
	Limiters *ratelimit.Limiters
	Clock    clockid.Provider
	Market   MarketData
	Envelope *envelope.Builder
	Bus      bus.Publisher
	Fees     decision.Fees
	Orders   *OrderTracker

	FreshnessWindowMillis   int64
	AggregationWindowMillis int64

	Log *zap.SugaredLogger
}

// Result summarizes one Execute call, used by the consumer to decide
// whether to ack and by tests to assert on outcomes.
type Result struct {
	SignalID     string
	Accepted     bool
	RejectReason string
	Expired      bool
	Legs         []router.LegResult
}

// Execute runs the 8-step pipeline of spec §4.10 for one intent.
func (p *Pipeline) Execute(ctx context.Context, it *model.Intent, correlationID string) Result {
	now := p.Clock.NowMillis()

	// 1. Gate.
	existingNotional := decimal.Zero
	if pos, ok := p.Shadow.GetPosition(it.Symbol); ok {
		existingNotional = pos.Notional()
	}
	refPrice, _ := it.ReferencePrice()
	verdict := p.Guard.Check(risk.CheckRequest{
		Intent:           it,
		ExistingNotional: existingNotional,
		ReferencePrice:   refPrice,
		TodayRealizedPnL: p.Shadow.TodayRealizedPnL(now),
		NowMillis:        now,
	})
	if !verdict.Allowed {
		metrics.IntentsRejected.WithLabelValues(verdict.Reason).Inc()
		p.publishReject(it, verdict.Reason, correlationID)
		return Result{SignalID: it.SignalID, RejectReason: verdict.Reason}
	}
	metrics.IntentsReceived.WithLabelValues(string(it.Kind)).Inc()

	// 2. Register.
	it.TIngress = now
	it.AggregationDeadlineMillis = now + p.AggregationWindowMillis
	if err := p.Shadow.RegisterIntent(ctx, it); err != nil {
		p.Log.Errorw("pipeline: register intent", "signal_id", it.SignalID, "err", err)
		return Result{SignalID: it.SignalID, RejectReason: "PERSIST_ERROR"}
	}

	// 3. Freshness.
	if now-it.TSignal > p.FreshnessWindowMillis {
		if err := p.Shadow.ExpireIntent(ctx, it.SignalID); err != nil {
			p.Log.Errorw("pipeline: expire intent", "signal_id", it.SignalID, "err", err)
		}
		metrics.IntentsExpired.Inc()
		p.publishExpired(it, correlationID)
		return Result{SignalID: it.SignalID, Expired: true}
	}

	// 4. Shadow fill.
	side := inferSide(it)
	if book, ok := p.Market.TopOfBook(it.Symbol); ok {
		sf := simulate.Synthesize(it, side, book, p.Fees.TakerFeePct, now)
		p.publishShadowFill(sf, correlationID)
	}

	// 6. Decide.
	dec := decision.Decide(it, p.Fees)
	it.TDecision = p.Clock.NowMillis()

	// 7. Fan out.
	venues := p.Router.Route(it)
	legs := p.Router.Execute(ctx, venues, func(string) router.PlaceOrderRequest {
		return router.PlaceOrderRequest{
			ClientOrderID: p.Clock.NewID(),
			Symbol:        it.Symbol,
			Side:          router.OrderSide(side),
			ReduceOnly:    dec.ReduceOnly,
			PostOnly:      dec.OrderType == decision.OrderTypeMakerPostOnly,
			LimitPrice:    dec.LimitPrice,
			Qty:           it.Size,
		}
	})

	ref := referencePriceFor(dec, it)
	for _, leg := range legs {
		p.settleLeg(ctx, it, leg, ref, correlationID)
	}

	// 8. Ack is the consumer's responsibility once Execute returns.
	return Result{SignalID: it.SignalID, Accepted: true, Legs: legs}
}

func (p *Pipeline) settleLeg(ctx context.Context, it *model.Intent, leg router.LegResult, ref decimal.Decimal, correlationID string) {
	now := p.Clock.NowMillis()
	var order *orderfsm.Order
	if p.Orders != nil {
		order = p.Orders.Start(leg.Request.ClientOrderID, now)
	}

	if err := p.Shadow.RecordOrderPlaced(ctx, shadow.OrderPlacedInput{
		SignalID:      it.SignalID,
		Venue:         leg.Venue,
		ClientOrderID: leg.Request.ClientOrderID,
		Symbol:        leg.Request.Symbol,
		Side:          string(leg.Request.Side),
		Qty:           leg.Request.Qty,
	}, now); err != nil {
		p.Log.Warnw("pipeline: record order placed", "venue", leg.Venue, "signal_id", it.SignalID, "err", err)
	}

	if leg.Err != nil {
		metrics.RouterLegErrors.WithLabelValues(leg.Venue).Inc()
		p.Log.Warnw("pipeline: leg failed", "venue", leg.Venue, "signal_id", it.SignalID, "err", leg.Err)
		if order != nil {
			_ = order.Apply(orderfsm.Failed, p.Clock.NowMillis(), leg.Err.Error())
		}
		return
	}
	if order != nil {
		_ = order.Apply(orderfsm.Sent, now, "")
		_ = order.Apply(orderfsm.Acked, p.Clock.NowMillis(), leg.Venue)
	}
	resp := leg.Response
	if resp.ExecutedQty.Sign() <= 0 || resp.AvgPrice.Sign() <= 0 {
		return
	}

	if slip := slippageBps(ref, resp.AvgPrice); slip.Sign() > 0 {
		p.Guard.RecordFillSlippage(slip)
		f, _ := slip.Float64()
		metrics.SlippageBps.Observe(f)
	}

	confirmedAt := p.Clock.NowMillis()
	events, status, err := p.Shadow.ConfirmExecution(ctx, shadow.FillInput{
		SignalID:    it.SignalID,
		ChildFillID: resp.OrderID,
		Price:       resp.AvgPrice,
		Qty:         resp.ExecutedQty,
		Filled:      true,
		Fee:         resp.Fee,
		FeeCurrency: resp.FeeAsset,
		NowMillis:   confirmedAt,
	})
	if err != nil {
		p.Log.Warnw("pipeline: confirm execution", "signal_id", it.SignalID, "venue", leg.Venue, "err", err)
		return
	}

	metrics.FillsRecorded.WithLabelValues(leg.Venue, it.Symbol).Inc()

	if err := p.Shadow.RecordChildOrder(ctx, model.ChildOrderRecord{
		SignalID:        it.SignalID,
		Venue:           leg.Venue,
		ClientOrderID:   leg.Request.ClientOrderID,
		ExchangeOrderID: resp.OrderID,
		RequestedQty:    leg.Request.Qty,
		CumulativeFill:  resp.ExecutedQty,
	}); err != nil {
		p.Log.Warnw("pipeline: record child order", "venue", leg.Venue, "signal_id", it.SignalID, "err", err)
	}

	p.publishFill(leg.Venue, it, resp, correlationID)
	p.publishShadowEvents(events, correlationID)

	if order != nil {
		tsMillis := p.Clock.NowMillis()
		if status == model.StatusExecuted {
			_ = order.Apply(orderfsm.Filled, tsMillis, "")
			_ = order.Apply(orderfsm.Reconciled, tsMillis, "")
		} else {
			// PartiallyCompleted (aggregation deadline) or still pending
			// further legs: the leg itself is done, but spec §4.4's
			// table only reconciles from Filled or Canceled, so a
			// partially-filled leg stays parked at PartialFill.
			_ = order.Apply(orderfsm.PartialFill, tsMillis, "")
		}
	}
}

// inferSide implements spec §4.10 step 5's side-inference table.
func inferSide(it *model.Intent) model.Side {
	switch it.Kind {
	case model.KindBuySetup:
		return model.SideBuy
	case model.KindSellSetup:
		return model.SideSell
	case model.KindCloseLong:
		return model.SideSell
	case model.KindCloseShort:
		return model.SideBuy
	case model.KindClose:
		if it.Direction < model.DirectionFlat {
			return model.SideBuy
		}
		return model.SideSell
	default:
		return model.SideSell
	}
}

// referencePriceFor implements step 7a's reference-price rule.
func referencePriceFor(dec decision.Decision, it *model.Intent) decimal.Decimal {
	if !dec.LimitPrice.IsZero() {
		return dec.LimitPrice
	}
	if p, ok := it.ReferencePrice(); ok {
		return p
	}
	return decimal.Zero
}

// slippageBps is the absolute difference between the fill price and
// the decision-time reference, in basis points (spec §4.3: "absolute
// difference from the decision-time reference price").
func slippageBps(ref, actual decimal.Decimal) decimal.Decimal {
	if ref.IsZero() {
		return decimal.Zero
	}
	return actual.Sub(ref).Abs().Div(ref).Mul(decimal.NewFromInt(10000))
}
