// Package decision implements spec §4.5: fee-aware maker/taker order
// decision, and the chase-timeout follow-up.
package decision

import (
	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/model"
)

// OrderType distinguishes a post-only maker limit from a taker order.
type OrderType string

const (
	OrderTypeMakerPostOnly OrderType = "MAKER_POST_ONLY"
	OrderTypeTaker         OrderType = "TAKER"
)

// Decision is the decider's output for one intent (spec §4.5).
type Decision struct {
	OrderType   OrderType       `json:"order_type"`
	LimitPrice  decimal.Decimal `json:"limit_price,omitempty"`
	ReduceOnly  bool            `json:"reduce_only"`
}

// Fees bundles the maker/taker fee rates and minimum profit margin a
// decision is made against.
type Fees struct {
	MakerFeePct      decimal.Decimal
	TakerFeePct      decimal.Decimal
	MinProfitMargin  decimal.Decimal
	ChaseTimeoutMillis int64
}

// Decide chooses between a post-only maker limit and a market/IOC
// taker order (spec §4.5).
func Decide(it *model.Intent, fees Fees) Decision {
	reduceOnly := it.Kind.IsClose()

	limitPrice := decimal.Zero
	if p, ok := it.ReferencePrice(); ok {
		limitPrice = p
	}

	if !it.ExpectedProfitPct.Valid {
		return Decision{OrderType: OrderTypeMakerPostOnly, LimitPrice: limitPrice, ReduceOnly: reduceOnly}
	}

	if takerProfitable(it.ExpectedProfitPct.Decimal, fees) {
		return Decision{OrderType: OrderTypeTaker, ReduceOnly: reduceOnly}
	}
	return Decision{OrderType: OrderTypeMakerPostOnly, LimitPrice: limitPrice, ReduceOnly: reduceOnly}
}

func takerProfitable(expected decimal.Decimal, fees Fees) bool {
	profitAfterTaker := expected.Sub(fees.TakerFeePct)
	return profitAfterTaker.Cmp(fees.MinProfitMargin) > 0
}

// ChaseAction is the follow-up produced when a resting maker order
// times out without a fill (spec §4.5 "Chase timeout").
type ChaseAction string

const (
	ChaseConvertToTaker ChaseAction = "CONVERT_TO_TAKER"
	ChaseCancel         ChaseAction = "CANCEL"
	ChaseWait           ChaseAction = "WAIT"
)

// CancelReasonInsufficientProfit is the reason attached to a
// ChaseCancel decision.
const CancelReasonInsufficientProfit = "INSUFFICIENT_PROFIT_FOR_TAKER"

// ChaseTimeout evaluates the follow-up action for a resting maker
// order whose age has exceeded fees.ChaseTimeoutMillis.
func ChaseTimeout(it *model.Intent, ageMillis int64, fees Fees) (ChaseAction, string) {
	if ageMillis < fees.ChaseTimeoutMillis {
		return ChaseWait, ""
	}
	if !it.ExpectedProfitPct.Valid {
		return ChaseCancel, CancelReasonInsufficientProfit
	}
	if takerProfitable(it.ExpectedProfitPct.Decimal, fees) {
		return ChaseConvertToTaker, ""
	}
	return ChaseCancel, CancelReasonInsufficientProfit
}
