// Package model holds the engine's core entities (spec.md §3): Intent,
// Position, TradeRecord, FillReport, ChildOrderRecord, WAL entries, and
// the wire envelope. Money fields use shopspring/decimal rather than
// float64 — the one place this repo departs from the teacher's float64
// idiom, because PnL and notional math must not drift.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of the exposure an Intent targets.
type Direction int

const (
	DirectionShort Direction = -1
	DirectionFlat  Direction = 0
	DirectionLong  Direction = 1
)

// IntentKind enumerates the recognized intent kinds.
type IntentKind string

const (
	KindBuySetup   IntentKind = "BuySetup"
	KindSellSetup  IntentKind = "SellSetup"
	KindCloseLong  IntentKind = "CloseLong"
	KindCloseShort IntentKind = "CloseShort"
	KindClose      IntentKind = "Close"
)

// IsClose reports whether the kind represents a reduce/close intent.
func (k IntentKind) IsClose() bool {
	switch k {
	case KindCloseLong, KindCloseShort, KindClose:
		return true
	default:
		return false
	}
}

// IntentStatus is the monotone lifecycle state of an Intent.
type IntentStatus string

const (
	StatusPending   IntentStatus = "Pending"
	StatusValidated IntentStatus = "Validated"
	StatusRejected  IntentStatus = "Rejected"
	StatusExecuted  IntentStatus = "Executed"
	StatusExpired   IntentStatus = "Expired"
	// StatusPartiallyCompleted is reached when the aggregation window
	// times out mid-fill (spec §4.11 step 6).
	StatusPartiallyCompleted IntentStatus = "PartiallyCompleted"
)

// Terminal reports whether the status removes the intent from the
// pending map.
func (s IntentStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusExecuted, StatusExpired, StatusPartiallyCompleted:
		return true
	default:
		return false
	}
}

// ChildFillKey identifies one applied fill for idempotency purposes
// (spec §4.11 step 1, §8 round-trip laws).
type ChildFillKey struct {
	ChildFillID string `json:"child_fill_id"`
}

// Intent is an instruction from the strategy service to open, flip, or
// close exposure on a symbol (spec §3).
type Intent struct {
	SignalID    string          `json:"signal_id"`
	Symbol      string          `json:"symbol"`
	Direction   Direction       `json:"direction"`
	Kind        IntentKind      `json:"kind"`
	EntryZone   []decimal.Decimal `json:"entry_zone"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TakeProfits []decimal.Decimal `json:"take_profits"`
	Size        decimal.Decimal `json:"size"`
	Status      IntentStatus    `json:"status"`

	TSignal   int64 `json:"t_signal"`
	TIngress  int64 `json:"t_ingress,omitempty"`
	TAnalysis int64 `json:"t_analysis,omitempty"`
	TDecision int64 `json:"t_decision,omitempty"`
	TExchange int64 `json:"t_exchange,omitempty"`

	// Envelope fields, propagated from the carrier (spec §3).
	TTLMillis    int64  `json:"ttl_ms,omitempty"`
	PartitionKey string `json:"partition_key,omitempty"`
	CausationID  string `json:"causation_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	PolicyHash   string `json:"policy_hash,omitempty"`

	// ExpectedProfitPct, when present, drives the maker/taker decision
	// (spec §4.5). Zero value means "not supplied".
	ExpectedProfitPct decimal.NullDecimal `json:"expected_profit_pct,omitempty"`

	// Source attributes the intent to a strategy for router routing
	// rules (spec §4.6): "scavenger", "hunter", "sentinel", ...
	Source string `json:"source,omitempty"`

	ChildFills  map[string]ChildFillKey `json:"child_fills,omitempty"`
	FilledSize  decimal.Decimal         `json:"filled_size"`

	AggregationDeadlineMillis int64 `json:"aggregation_deadline_ms,omitempty"`
}

// ReferencePrice returns the price the pipeline pins as "decision-time
// reference": the first entry-zone value, or the zero value when the
// zone is empty (the caller falls back to an adapter-supplied mark).
func (i *Intent) ReferencePrice() (decimal.Decimal, bool) {
	if len(i.EntryZone) == 0 {
		return decimal.Zero, false
	}
	return i.EntryZone[0], true
}

// RecordedAt returns TIngress as a time.Time for logging convenience.
func (i *Intent) RecordedAt() time.Time {
	return time.UnixMilli(i.TIngress).UTC()
}
