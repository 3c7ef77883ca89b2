package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentRoundTrip(t *testing.T) {
	it := &Intent{
		SignalID:  "sig-1",
		Symbol:    "BTC-USD",
		Direction: DirectionLong,
		Kind:      KindBuySetup,
		EntryZone: []decimal.Decimal{decimal.NewFromFloat(50000.5)},
		Size:      decimal.NewFromInt(2),
		Status:    StatusPending,
		Source:    "hunter",
	}

	raw, err := json.Marshal(it)
	require.NoError(t, err)

	var round Intent
	require.NoError(t, json.Unmarshal(raw, &round))

	assert.True(t, it.Size.Equal(round.Size))
	assert.Equal(t, it.Symbol, round.Symbol)
	assert.Equal(t, it.Kind, round.Kind)

	ref, ok := round.ReferencePrice()
	require.True(t, ok)
	assert.True(t, ref.Equal(decimal.NewFromFloat(50000.5)))
}

func TestIntentReferencePriceEmptyZone(t *testing.T) {
	it := &Intent{}
	_, ok := it.ReferencePrice()
	assert.False(t, ok)
}

func TestIntentKindIsClose(t *testing.T) {
	assert.True(t, KindCloseLong.IsClose())
	assert.True(t, KindCloseShort.IsClose())
	assert.True(t, KindClose.IsClose())
	assert.False(t, KindBuySetup.IsClose())
	assert.False(t, KindSellSetup.IsClose())
}

func TestIntentStatusTerminal(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusExecuted.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusPartiallyCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusValidated.Terminal())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideShort, SideLong.Opposite())
	assert.Equal(t, SideLong, SideShort.Opposite())
}

func TestPositionSideFor(t *testing.T) {
	assert.Equal(t, SideLong, PositionSideFor(SideBuy))
	assert.Equal(t, SideShort, PositionSideFor(SideSell))
}

func TestPositionNotionalFallsBackToEntryPrice(t *testing.T) {
	p := &Position{Size: decimal.NewFromInt(3), EntryPrice: decimal.NewFromInt(100)}
	assert.True(t, p.Notional().Equal(decimal.NewFromInt(300)))

	p.LastMarkPrice = decimal.NewFromInt(110)
	assert.True(t, p.Notional().Equal(decimal.NewFromInt(330)))
}

func TestPositionApplyMarkLongVsShort(t *testing.T) {
	long := &Position{Side: SideLong, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100)}
	long.ApplyMark(decimal.NewFromInt(110), 1000)
	assert.True(t, long.UnrealizedPnL.Equal(decimal.NewFromInt(10)))

	short := &Position{Side: SideShort, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100)}
	short.ApplyMark(decimal.NewFromInt(110), 1000)
	assert.True(t, short.UnrealizedPnL.Equal(decimal.NewFromInt(-10)))
}

func TestPositionPyramidWeightedEntry(t *testing.T) {
	p := &Position{Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100)}
	p.Pyramid(decimal.NewFromInt(200), decimal.NewFromInt(1), 2000)

	assert.True(t, p.Size.Equal(decimal.NewFromInt(2)))
	assert.True(t, p.EntryPrice.Equal(decimal.NewFromInt(150)))
}
