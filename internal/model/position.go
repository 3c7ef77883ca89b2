package model

import "github.com/shopspring/decimal"

// Side is the direction of an open position or a fill.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
	SideBuy   Side = "Buy"
	SideSell  Side = "Sell"
)

// Opposite returns the opposite trade side, used when inferring a
// close side from an open side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return s
	}
}

// PositionSideFor maps a trade side to the position side it opens.
func PositionSideFor(tradeSide Side) Side {
	if tradeSide == SideBuy {
		return SideLong
	}
	return SideShort
}

// Position is the current exposure on one symbol (spec §3). At most
// one Position exists per symbol at any time (invariant a); Size > 0
// iff the position is present in the shadow state's map (invariant b).
type Position struct {
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Size        decimal.Decimal `json:"size"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TakeProfits []decimal.Decimal `json:"take_profits"`

	SignalID string `json:"signal_id"`
	OpenedAt int64  `json:"opened_at"`

	LastMarkPrice decimal.Decimal `json:"last_mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	FeesPaid      decimal.Decimal `json:"fees_paid"`
	FundingPaid   decimal.Decimal `json:"funding_paid"`
	LastUpdateTS  int64           `json:"last_update_ts"`
}

// Notional returns size * reference price, where reference is
// LastMarkPrice if known, else EntryPrice (spec §4.11 exposure
// aggregation fallback rule).
func (p *Position) Notional() decimal.Decimal {
	ref := p.LastMarkPrice
	if ref.IsZero() {
		ref = p.EntryPrice
	}
	return p.Size.Mul(ref)
}

// ApplyMark recomputes unrealized PnL from a new mark price.
func (p *Position) ApplyMark(price decimal.Decimal, tsMillis int64) {
	p.LastMarkPrice = price
	p.LastUpdateTS = tsMillis
	if p.Side == SideLong {
		p.UnrealizedPnL = price.Sub(p.EntryPrice).Mul(p.Size)
	} else {
		p.UnrealizedPnL = p.EntryPrice.Sub(price).Mul(p.Size)
	}
}

// Pyramid extends the position with a same-side fill, computing the
// new size-weighted entry price (spec §3 invariant c).
func (p *Position) Pyramid(fillPrice, fillQty decimal.Decimal, tsMillis int64) {
	totalSize := p.Size.Add(fillQty)
	if totalSize.IsZero() {
		return
	}
	weighted := p.EntryPrice.Mul(p.Size).Add(fillPrice.Mul(fillQty))
	p.EntryPrice = weighted.Div(totalSize)
	p.Size = totalSize
	p.LastUpdateTS = tsMillis
}
