package router

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titanx/execution-core/internal/clockid"
)

func TestDefaultRoutingRulesPlan(t *testing.T) {
	rules := DefaultRoutingRules()

	assert.Equal(t, []string{"bybit", "mexc"}, rules.Plan("scavenger"))
	assert.Equal(t, []string{"bybit", "mexc"}, rules.Plan("Scavenger"))
	assert.Equal(t, []string{"binance"}, rules.Plan("hunter"))
	assert.Equal(t, []string{"binance"}, rules.Plan("sentinel"))
	assert.Equal(t, []string{"binance"}, rules.Plan(""))
	assert.Equal(t, []string{"binance"}, rules.Plan("unknown-source"))
}

func TestRegistryGetUnknownVenue(t *testing.T) {
	reg := NewRegistry()
	_, _, ok := reg.Get("nowhere")
	assert.False(t, ok)
}

func TestRouterExecuteFanOutAllLegsIndependent(t *testing.T) {
	clock := clockid.NewSim(1000)
	reg := NewRegistry()
	reg.Register(NewMockAdapter("binance", clock, decimal.NewFromInt(100), decimal.Zero))
	reg.Register(NewMockAdapter("bybit", clock, decimal.NewFromInt(100), decimal.Zero))

	rt := NewRouter(reg, DefaultRoutingRules())
	legs := rt.Execute(context.Background(), []string{"binance", "bybit", "unknown"}, func(venue string) PlaceOrderRequest {
		return PlaceOrderRequest{ClientOrderID: "c-" + venue, Symbol: "BTC-USD", Side: SideBuy, Qty: decimal.NewFromInt(1)}
	})

	require.Len(t, legs, 3)
	assert.NoError(t, legs[0].Err)
	assert.NotNil(t, legs[0].Response)
	assert.NoError(t, legs[1].Err)
	assert.Error(t, legs[2].Err, "the unregistered venue must fail without affecting the others")
}

func TestMockAdapterFillsAtLimitPriceWhenSet(t *testing.T) {
	clock := clockid.NewSim(1000)
	m := NewMockAdapter("binance", clock, decimal.NewFromInt(100), decimal.NewFromFloat(0.001))

	resp, err := m.PlaceOrder(context.Background(), PlaceOrderRequest{ClientOrderID: "c1", LimitPrice: decimal.NewFromInt(150), Qty: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.True(t, resp.AvgPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, resp.ExecutedQty.Equal(decimal.NewFromInt(2)))
	assert.True(t, resp.Fee.Equal(decimal.NewFromInt(150).Mul(decimal.NewFromInt(2)).Mul(decimal.NewFromFloat(0.001))))
}

func TestMockAdapterFillsAtCurrentPriceForMarketOrder(t *testing.T) {
	clock := clockid.NewSim(1000)
	m := NewMockAdapter("binance", clock, decimal.NewFromInt(100), decimal.Zero)
	m.SetPrice(decimal.NewFromInt(200))

	resp, err := m.PlaceOrder(context.Background(), PlaceOrderRequest{ClientOrderID: "c1", Qty: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.True(t, resp.AvgPrice.Equal(decimal.NewFromInt(200)))
}
