// Package replay implements spec §4.13: a deterministic driver over a
// tagged event stream, dispatching each event to the same pipeline
// production uses, with the simulated clock advanced to the event's
// timestamp before dispatch.
package replay

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/consumer"
	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/pipeline"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/simulate"
)

// EventKind tags one replay event (spec §4.13).
type EventKind string

const (
	EventMarketData EventKind = "MarketData"
	EventSignal     EventKind = "Signal"
	EventRiskPolicy EventKind = "RiskPolicy"
	EventTick       EventKind = "Tick"
)

// Event is one entry in the replay file. Exactly the field matching
// Kind is populated.
type Event struct {
	Kind     EventKind
	TSMillis int64

	Ticker *simulate.TopOfBook
	Intent *model.Intent
	Policy *risk.Policy
}

// Engine drives a Pipeline over a recorded event stream under a Sim
// clock and a deterministic mock adapter set, so the same file
// replayed twice produces byte-identical fills and trade records.
type Engine struct {
	Pipeline *pipeline.Pipeline
	Clock    *clockid.Sim
	Ticker   *consumer.TickerStore
	Guard    *risk.Guard
	Mocks    []*router.MockAdapter

	Log *zap.SugaredLogger
}

// Run dispatches every event in order and returns one pipeline.Result
// per Signal event processed.
func (e *Engine) Run(ctx context.Context, events []Event) []pipeline.Result {
	results := make([]pipeline.Result, 0, len(events))
	for _, ev := range events {
		e.Clock.Advance(ev.TSMillis)

		switch ev.Kind {
		case EventMarketData:
			if ev.Ticker == nil {
				continue
			}
			e.Ticker.Set(*ev.Ticker)
			mid := midPrice(*ev.Ticker)
			for _, m := range e.Mocks {
				m.SetPrice(mid)
			}

		case EventSignal:
			if ev.Intent == nil {
				continue
			}
			results = append(results, e.Pipeline.Execute(ctx, ev.Intent, "replay"))

		case EventRiskPolicy:
			if ev.Policy == nil {
				continue
			}
			e.Guard.SetPolicy(ev.Policy)

		case EventTick:
			// Clock advance above is the entire effect: a Tick event
			// exists to let a replay file force time forward past an
			// aggregation or chase-timeout deadline with no other
			// event attached.

		default:
			if e.Log != nil {
				e.Log.Warnw("replay: unknown event kind", "kind", ev.Kind)
			}
		}
	}
	return results
}

func midPrice(book simulate.TopOfBook) decimal.Decimal {
	if book.BestBid.IsZero() {
		return book.BestAsk
	}
	if book.BestAsk.IsZero() {
		return book.BestBid
	}
	return book.BestBid.Add(book.BestAsk).Div(decimal.NewFromInt(2))
}
