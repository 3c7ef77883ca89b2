package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/config"
	"github.com/titanx/execution-core/internal/decision"
	"github.com/titanx/execution-core/internal/envelope"
	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/pipeline"
	"github.com/titanx/execution-core/internal/ratelimit"
	"github.com/titanx/execution-core/internal/risk"
	"github.com/titanx/execution-core/internal/router"
	"github.com/titanx/execution-core/internal/shadow"
	"github.com/titanx/execution-core/internal/storage"
)

// discardBus satisfies bus.Publisher without a live NATS connection.
// The happy-path and gated tests in this file never touch l.NC: every
// handler exercised here reads only msg.Data (or, for processIntent,
// only falls onto the DLQ/NC path on malformed input, which these
// tests deliberately avoid so Loop.NC can stay nil).
type discardBus struct{}

func (discardBus) Publish(string, []byte) error { return nil }

func newTestLoop(t *testing.T) (*Loop, *clockid.Sim) {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := clockid.NewSim(1_000_000)
	reg := router.NewRegistry()
	reg.Register(router.NewMockAdapter("binance", clock, decimal.NewFromInt(100), decimal.Zero))
	rt := router.NewRouter(reg, router.DefaultRoutingRules())

	guard := risk.NewGuard(&risk.Policy{
		MaxPositionNotional: decimal.NewFromInt(1_000_000),
		MaxDailyLoss:        decimal.NewFromInt(-1_000_000),
		MaxSlippageBps:      decimal.NewFromInt(10_000),
		MaxStalenessMillis:  1_000_000,
		CurrentState:        risk.StateNormal,
	}, nil)
	guard.Heartbeat(clock.NowMillis())

	shadowState := shadow.New(store, 100)
	ticker := NewTickerStore()

	p := &pipeline.Pipeline{
		Guard:    guard,
		Shadow:   shadowState,
		Router:   rt,
		Limiters: ratelimit.New(100, 100),
		Clock:    clock,
		Market:   ticker,
		Envelope: &envelope.Builder{Clock: clock, Secret: []byte("loop-secret"), KeyID: ""},
		Bus:      discardBus{},
		Fees: decision.Fees{
			MakerFeePct:        decimal.NewFromFloat(0.001),
			TakerFeePct:        decimal.NewFromFloat(0.002),
			MinProfitMargin:    decimal.NewFromFloat(0.0005),
			ChaseTimeoutMillis: 5000,
		},
		Orders:                  pipeline.NewOrderTracker(),
		FreshnessWindowMillis:   60_000,
		AggregationWindowMillis: 60_000,
		Log:                     zap.NewNop().Sugar(),
	}

	armed := config.NewArmed(t.TempDir() + "/execution.armed")
	require.NoError(t, armed.Arm())

	return &Loop{
		Verifier: envelope.NewVerifier(map[string][]byte{"": []byte("loop-secret")}),
		Pipeline: p,
		Guard:    guard,
		Shadow:   shadowState,
		Store:    store,
		Router:   rt,
		Ticker:   ticker,
		Armed:    armed,
		Clock:    clock,
		Log:      zap.NewNop().Sugar(),
	}, clock
}

func signedIntentMsg(t *testing.T, l *Loop, clock *clockid.Sim, signalID string) *nats.Msg {
	t.Helper()
	payload := map[string]interface{}{
		"signal_id":  signalID,
		"symbol":     "BTC-USD",
		"direction":  1,
		"kind":       "BuySetup",
		"entry_zone": []string{"100"},
		"size":       "1",
		"t_signal":   clock.NowMillis(),
		"source":     "hunter",
	}
	env, err := l.Pipeline.Envelope.Wrap("IntentCreated", payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return &nats.Msg{Data: raw}
}

func TestProcessIntentHappyPathAcks(t *testing.T) {
	l, clock := newTestLoop(t)
	msg := signedIntentMsg(t, l, clock, "c1")

	l.processIntent(context.Background(), msg)

	_, ok := l.Shadow.GetPosition("BTC-USD")
	assert.True(t, ok, "an accepted intent must open a shadow position")
}

func TestProcessIntentDuplicateIsIdempotent(t *testing.T) {
	l, clock := newTestLoop(t)
	msg := signedIntentMsg(t, l, clock, "c2")

	l.processIntent(context.Background(), msg)
	pos1, _ := l.Shadow.GetPosition("BTC-USD")

	// Replaying the exact same envelope (same signal id + nonce) must
	// be a no-op: the idempotency claim fails and processIntent returns
	// before touching the pipeline a second time.
	l.processIntent(context.Background(), msg)
	pos2, _ := l.Shadow.GetPosition("BTC-USD")

	assert.True(t, pos1.Size.Equal(pos2.Size), "a replayed envelope must not double-fill the position")
}

func TestProcessIntentHaltedGateSkipsPipeline(t *testing.T) {
	l, clock := newTestLoop(t)
	l.halted.Store(true)
	msg := signedIntentMsg(t, l, clock, "c3")

	l.processIntent(context.Background(), msg)

	_, ok := l.Shadow.GetPosition("BTC-USD")
	assert.False(t, ok, "a halted loop must not execute the pipeline")
}

func TestProcessIntentNotArmedRejects(t *testing.T) {
	l, clock := newTestLoop(t)
	require.NoError(t, l.Armed.Disarm())
	msg := signedIntentMsg(t, l, clock, "c4")

	l.processIntent(context.Background(), msg)

	_, ok := l.Shadow.GetPosition("BTC-USD")
	assert.False(t, ok, "a disarmed loop must reject before the pipeline runs")
}

func TestHandleIntentMsgRecoversFromPanic(t *testing.T) {
	l, clock := newTestLoop(t)
	msg := signedIntentMsg(t, l, clock, "c-panic")
	l.Verifier = nil // a signed envelope passes the field check, then Verify reads the nil receiver

	assert.NotPanics(t, func() {
		l.handleIntentMsg(context.Background(), msg)
	})
}

func TestOnFlattenClosesEveryOpenPosition(t *testing.T) {
	l, clock := newTestLoop(t)
	l.processIntent(context.Background(), signedIntentMsg(t, l, clock, "c5"))
	_, ok := l.Shadow.GetPosition("BTC-USD")
	require.True(t, ok)

	l.onFlatten(&nats.Msg{})

	_, ok = l.Shadow.GetPosition("BTC-USD")
	assert.False(t, ok, "onFlatten must synthesize a close for every open position")
}

func TestOnHeartbeatStampsGuardLiveness(t *testing.T) {
	l, clock := newTestLoop(t)
	// Move past MaxStalenessMillis (1_000_000) since the setup heartbeat.
	clock.Advance(clock.NowMillis() + 2_000_000)

	l.onHeartbeat(&nats.Msg{})

	v := l.Guard.Check(risk.CheckRequest{
		Intent:         &model.Intent{SignalID: "hb", Symbol: "BTC-USD", Kind: model.KindBuySetup, Size: decimal.NewFromInt(1)},
		ReferencePrice: decimal.NewFromInt(100),
		NowMillis:      clock.NowMillis(),
	})
	assert.True(t, v.Allowed, "a fresh heartbeat must keep the guard out of staleness rejection")
}

func TestOnStateUpdateAppliesOperatorOverride(t *testing.T) {
	l, clock := newTestLoop(t)
	env, err := l.Pipeline.Envelope.Wrap("RiskStateSet", map[string]string{"state": string(risk.StateDefensive)})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	l.onStateUpdate(&nats.Msg{Data: raw})

	_ = clock
	assert.Equal(t, risk.StateDefensive, l.Guard.Policy().CurrentState)
}

func TestOnPolicyUpdateReplacesPolicy(t *testing.T) {
	l, _ := newTestLoop(t)
	newPolicy := risk.Policy{
		MaxPositionNotional: decimal.NewFromInt(5000),
		MaxDailyLoss:        decimal.NewFromInt(-500),
		MaxStalenessMillis:  1000,
		CurrentState:        risk.StateCautious,
		Version:             7,
	}
	env, err := l.Pipeline.Envelope.Wrap("RiskPolicyUpdated", newPolicy)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	l.onPolicyUpdate(&nats.Msg{Data: raw})

	assert.Equal(t, 7, l.Guard.Policy().Version)
	assert.Equal(t, risk.StateCautious, l.Guard.Policy().CurrentState)
}

func TestOnTickerUpdatesMarkAndExposure(t *testing.T) {
	l, clock := newTestLoop(t)
	l.processIntent(context.Background(), signedIntentMsg(t, l, clock, "c6"))
	_, ok := l.Shadow.GetPosition("BTC-USD")
	require.True(t, ok)

	payload := map[string]interface{}{
		"symbol":    "BTC-USD",
		"best_bid":  "150",
		"best_ask":  "152",
		"ts_millis": clock.NowMillis(),
	}
	env, err := l.Pipeline.Envelope.Wrap("Ticker", payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	l.onTicker(&nats.Msg{Data: raw})

	pos, ok := l.Shadow.GetPosition("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.LastMarkPrice.Equal(decimal.NewFromInt(151)))
}
