package model

import "github.com/shopspring/decimal"

// TradeRecord is an immutable record of a partial or full close (spec §3).
type TradeRecord struct {
	SignalID    string          `json:"signal_id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	ClosedSize  decimal.Decimal `json:"closed_size"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      decimal.Decimal `json:"pnl_pct"`
	OpenedAt    int64           `json:"opened_at"`
	ClosedAt    int64           `json:"closed_at"`
	CloseReason string          `json:"close_reason"`
}

// NewTradeRecord computes PnL and PnL% per spec §3's formulas:
//
//	Long:  pnl = (exit-entry)*size,  pnl_pct = (exit-entry)/entry*100
//	Short: pnl = (entry-exit)*size,  pnl_pct = (entry-exit)/entry*100
//
// When entry is zero, pnl_pct is zero, not NaN/Inf (spec §8 boundary law).
func NewTradeRecord(signalID, symbol string, side Side, entry, exit, size decimal.Decimal, openedAt, closedAt int64, reason string) TradeRecord {
	var pnl, diff decimal.Decimal
	if side == SideLong {
		diff = exit.Sub(entry)
	} else {
		diff = entry.Sub(exit)
	}
	pnl = diff.Mul(size)

	pnlPct := decimal.Zero
	if !entry.IsZero() {
		pnlPct = diff.Div(entry).Mul(decimal.NewFromInt(100))
	}

	return TradeRecord{
		SignalID:    signalID,
		Symbol:      symbol,
		Side:        side,
		EntryPrice:  entry,
		ExitPrice:   exit,
		ClosedSize:  size,
		PnL:         pnl,
		PnLPct:      pnlPct,
		OpenedAt:    openedAt,
		ClosedAt:    closedAt,
		CloseReason: reason,
	}
}
