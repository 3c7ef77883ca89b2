package model

import "github.com/shopspring/decimal"

// FillReport is a per-venue execution report for downstream analytics
// (spec §3).
type FillReport struct {
	FillID        string `json:"fill_id"`
	SignalID      string `json:"signal_id"`
	ClientOrderID string `json:"client_order_id"`
	ExecutionID   string `json:"execution_id"`
	OrderID       string `json:"order_id"`

	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	Fee         decimal.Decimal `json:"fee"`
	FeeCurrency string          `json:"fee_currency"`

	TSignal   int64 `json:"t_signal"`
	TIngress  int64 `json:"t_ingress"`
	TDecision int64 `json:"t_decision"`
	TAck      int64 `json:"t_ack"`
	TExchange int64 `json:"t_exchange"`
}

// ChildOrderRecord is one per (intent, venue) fan-out leg (spec §3).
type ChildOrderRecord struct {
	SignalID        string          `json:"signal_id"`
	Venue           string          `json:"venue"`
	ClientOrderID   string          `json:"client_order_id"`
	ExchangeOrderID string          `json:"exchange_order_id"`
	RequestedQty    decimal.Decimal `json:"requested_qty"`
	CumulativeFill  decimal.Decimal `json:"cumulative_fill"`
}
