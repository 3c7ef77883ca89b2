package shadow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/storage"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, 1000)
}

func registerOpenIntent(t *testing.T, s *State, signalID, symbol string, size int64) *model.Intent {
	t.Helper()
	it := &model.Intent{
		SignalID: signalID,
		Symbol:   symbol,
		Kind:     model.KindBuySetup,
		Size:     decimal.NewFromInt(size),
		TSignal:  1000,
	}
	require.NoError(t, s.RegisterIntent(context.Background(), it))
	return it
}

func TestConfirmExecutionOpensPosition(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1",
		Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, status)
	require.Len(t, events, 1)
	assert.Equal(t, EventPositionOpened, events[0].Kind)

	pos, ok := s.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(2)))

	_, pending := s.GetIntent("sig-1")
	assert.False(t, pending, "a fully filled intent leaves the pending map")
}

func TestConfirmExecutionPyramidsSameSideFill(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1",
		Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f2",
		Price: decimal.NewFromInt(200), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1200,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, status)
	require.Len(t, events, 1)
	assert.Equal(t, EventPositionUpdated, events[0].Kind)

	pos, ok := s.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(2)))
	assert.True(t, pos.EntryPrice.Equal(decimal.NewFromInt(150)), "size-weighted entry price")
}

func TestConfirmExecutionDuplicateFillIsIdempotent(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 5)

	fill := FillInput{SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100}
	_, _, err := s.ConfirmExecution(context.Background(), fill)
	require.NoError(t, err)

	events, _, err := s.ConfirmExecution(context.Background(), fill)
	require.NoError(t, err)
	assert.Nil(t, events, "a repeated child fill id must be a no-op")

	pos, ok := s.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(2)), "size must not double-count the duplicate")
}

func TestConfirmExecutionPartialClose(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)

	closeIt := &model.Intent{SignalID: "sig-2", Symbol: "BTC-USD", Kind: model.KindCloseLong, Size: decimal.NewFromInt(2), TSignal: 1200}
	require.NoError(t, s.RegisterIntent(context.Background(), closeIt))

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-2", ChildFillID: "f2", Price: decimal.NewFromInt(150), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1300,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status, "only half the close size filled so far")
	require.Len(t, events, 2)
	assert.Equal(t, EventPositionUpdated, events[0].Kind)
	assert.Equal(t, EventTradeCompleted, events[1].Kind)

	pos, ok := s.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(1)))

	trades := s.RecentTrades(10)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].PnL.Equal(decimal.NewFromInt(50)))
}

func TestConfirmExecutionFullClose(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)

	closeIt := &model.Intent{SignalID: "sig-2", Symbol: "BTC-USD", Kind: model.KindCloseLong, Size: decimal.NewFromInt(2), TSignal: 1200}
	require.NoError(t, s.RegisterIntent(context.Background(), closeIt))

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-2", ChildFillID: "f2", Price: decimal.NewFromInt(150), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1300,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, status)
	require.Len(t, events, 2)
	assert.Equal(t, EventPositionClosed, events[0].Kind)
	assert.Equal(t, EventTradeCompleted, events[1].Kind)

	_, ok := s.GetPosition("BTC-USD")
	assert.False(t, ok)
}

func TestConfirmExecutionFlip(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)

	flipIt := &model.Intent{SignalID: "sig-2", Symbol: "BTC-USD", Kind: model.KindSellSetup, Direction: model.DirectionShort, Size: decimal.NewFromInt(3), TSignal: 1200}
	require.NoError(t, s.RegisterIntent(context.Background(), flipIt))

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-2", ChildFillID: "f2", Price: decimal.NewFromInt(120), Qty: decimal.NewFromInt(3), Filled: true, NowMillis: 1300,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, status)
	require.Len(t, events, 3)
	assert.Equal(t, EventPositionClosed, events[0].Kind)
	assert.Equal(t, EventTradeCompleted, events[1].Kind)
	assert.Equal(t, EventPositionOpened, events[2].Kind)

	pos, ok := s.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, model.SideShort, pos.Side)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(1)), "residual after closing the 2-unit long")
}

func TestConfirmExecutionSpuriousCloseIsNoOp(t *testing.T) {
	s := newTestState(t)
	closeIt := &model.Intent{SignalID: "sig-1", Symbol: "BTC-USD", Kind: model.KindCloseLong, Size: decimal.NewFromInt(1), TSignal: 1000}
	require.NoError(t, s.RegisterIntent(context.Background(), closeIt))

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1100,
	})
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Equal(t, model.StatusPending, status, "the intent itself is left untouched")

	it, ok := s.GetIntent("sig-1")
	require.True(t, ok)
	assert.True(t, it.FilledSize.IsZero(), "filled_size must not move on a spurious close")
}

func TestConfirmExecutionNotFilledRejectsIntent(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 2)

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Filled: false, RejectReason: "INSUFFICIENT_BALANCE", NowMillis: 1100,
	})
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Equal(t, model.StatusRejected, status)

	_, ok := s.GetIntent("sig-1")
	assert.False(t, ok)
}

func TestConfirmExecutionUnknownSignalID(t *testing.T) {
	s := newTestState(t)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{SignalID: "missing", ChildFillID: "f1", Filled: true, NowMillis: 1000})
	assert.ErrorIs(t, err, ErrIntentNotPending)
}

func TestConfirmExecutionAggregationTimeoutYieldsPartiallyCompleted(t *testing.T) {
	s := newTestState(t)
	it := &model.Intent{SignalID: "sig-1", Symbol: "BTC-USD", Kind: model.KindBuySetup, Size: decimal.NewFromInt(5), TSignal: 1000, AggregationDeadlineMillis: 1500}
	require.NoError(t, s.RegisterIntent(context.Background(), it))

	events, status, err := s.ConfirmExecution(context.Background(), FillInput{
		SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 2000,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusPartiallyCompleted, status)

	_, ok := s.GetIntent("sig-1")
	assert.False(t, ok, "a timed-out partial fill is removed from pending")
}

func TestExposureAggregatesLongAndShort(t *testing.T) {
	s := newTestState(t)
	registerOpenIntent(t, s, "sig-1", "BTC-USD", 1)
	_, _, err := s.ConfirmExecution(context.Background(), FillInput{SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1100})
	require.NoError(t, err)

	shortIt := &model.Intent{SignalID: "sig-2", Symbol: "ETH-USD", Kind: model.KindSellSetup, Direction: model.DirectionShort, Size: decimal.NewFromInt(1), TSignal: 1000}
	require.NoError(t, s.RegisterIntent(context.Background(), shortIt))
	_, _, err = s.ConfirmExecution(context.Background(), FillInput{SignalID: "sig-2", ChildFillID: "f2", Price: decimal.NewFromInt(50), Qty: decimal.NewFromInt(1), Filled: true, NowMillis: 1100})
	require.NoError(t, err)

	exp := s.Exposure()
	assert.True(t, exp.LongNotional.Equal(decimal.NewFromInt(100)))
	assert.True(t, exp.ShortNotional.Equal(decimal.NewFromInt(50)))
	assert.True(t, exp.Net.Equal(decimal.NewFromInt(50)))
	assert.True(t, exp.Gross.Equal(decimal.NewFromInt(150)))
}

func TestRecoverFromStoreRehydratesState(t *testing.T) {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	s1 := New(store, 100)
	registerOpenIntent(t, s1, "sig-1", "BTC-USD", 2)
	_, _, err = s1.ConfirmExecution(context.Background(), FillInput{SignalID: "sig-1", ChildFillID: "f1", Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(2), Filled: true, NowMillis: 1100})
	require.NoError(t, err)

	s2 := New(store, 100)
	require.NoError(t, s2.RecoverFromStore(context.Background()))

	pos, ok := s2.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(2)))
}
