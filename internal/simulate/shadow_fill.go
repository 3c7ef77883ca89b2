// Package simulate implements spec §4.7: on every validated intent, a
// shadow fill is synthesized from the current top-of-book ticker,
// regardless of whether the intent will actually be placed. It is the
// measurement ground for execution-quality reporting.
package simulate

import (
	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/model"
)

// TopOfBook is the per-symbol best bid/ask snapshot the simulator
// reads (spec §6 market-data contract — core only reads it).
type TopOfBook struct {
	Symbol   string
	BestBid  decimal.Decimal
	BestAsk  decimal.Decimal
	TSMillis int64
}

// ShadowFill is the counterfactual fill published on the shadow-fill
// subject (spec §4.7, §6).
type ShadowFill struct {
	SignalID string          `json:"signal_id"`
	Symbol   string          `json:"symbol"`
	Side     model.Side      `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"`
	Fee      decimal.Decimal `json:"fee"`
	TSMillis int64           `json:"ts_millis"`
}

// Synthesize computes a taker-side shadow fill: the side pays the
// opposing best (buy pays the ask, sell pays the bid), fee is the
// configured taker rate.
func Synthesize(it *model.Intent, side model.Side, book TopOfBook, takerFeeRate decimal.Decimal, nowMillis int64) ShadowFill {
	price := book.BestBid
	if side == model.SideBuy {
		price = book.BestAsk
	}
	fee := price.Mul(it.Size).Mul(takerFeeRate)
	return ShadowFill{
		SignalID: it.SignalID,
		Symbol:   it.Symbol,
		Side:     side,
		Price:    price,
		Qty:      it.Size,
		Fee:      fee,
		TSMillis: nowMillis,
	}
}
