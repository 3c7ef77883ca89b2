package router

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/clockid"
)

// MockAdapter is the deterministic adapter spec §4.13 requires: given
// the same sequence of PlaceOrder calls under a Sim clock/id provider,
// it produces bit-identical fill reports, which is what makes replay
// reproducible.
type MockAdapter struct {
	venue string
	clock clockid.Provider

	mu    sync.Mutex
	price decimal.Decimal // current deterministic fill price
	seq   atomic.Uint64

	// FeeRate is the taker fee rate applied to every fill.
	FeeRate decimal.Decimal
}

// NewMockAdapter constructs a deterministic adapter for venue, seeded
// with an initial fill price.
func NewMockAdapter(venue string, clock clockid.Provider, initialPrice decimal.Decimal, feeRate decimal.Decimal) *MockAdapter {
	return &MockAdapter{venue: venue, clock: clock, price: initialPrice, FeeRate: feeRate}
}

// SetPrice updates the price the mock fills at, e.g. in response to a
// replayed MarketData event.
func (m *MockAdapter) SetPrice(p decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = p
}

func (m *MockAdapter) Init(ctx context.Context) error { return nil }

func (m *MockAdapter) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error) {
	m.mu.Lock()
	price := req.LimitPrice
	if price.IsZero() {
		price = m.price
	}
	fee := price.Mul(req.Qty).Mul(m.FeeRate)
	m.mu.Unlock()

	now := m.clock.NowMillis()
	return &PlaceOrderResponse{
		OrderID:       m.clock.NewID(),
		ClientOrderID: req.ClientOrderID,
		Status:        "FILLED",
		AvgPrice:      price,
		ExecutedQty:   req.Qty,
		TExchange:     now,
		TAck:          now,
		Fee:           fee,
		FeeAsset:      "USD",
	}, nil
}

func (m *MockAdapter) CancelOrder(ctx context.Context, symbol, orderID string) (*PlaceOrderResponse, error) {
	return &PlaceOrderResponse{OrderID: orderID, Status: "CANCELED", TAck: m.clock.NowMillis()}, nil
}

func (m *MockAdapter) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1_000_000), nil
}

func (m *MockAdapter) GetPositions(ctx context.Context) ([]Position, error) {
	return nil, nil
}

func (m *MockAdapter) Name() string { return m.venue }
