package risk

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/model"
	"go.uber.org/zap"
)

// CheckRequest bundles everything the pre-trade check needs beyond the
// policy itself; the caller (internal/pipeline) is responsible for
// computing ExistingNotional and TodayRealizedPnL from shadow state,
// since RiskGuard does not reach into shadow state directly (spec §9:
// "do not reach into [globals] from inside the shadow-state critical
// section" — the inverse discipline applies here too).
type CheckRequest struct {
	Intent           *model.Intent
	ExistingNotional decimal.Decimal
	ReferencePrice   decimal.Decimal
	TodayRealizedPnL decimal.Decimal
	NowMillis        int64
}

// Verdict is the pre-trade check's outcome.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict        { return Verdict{Allowed: true} }
func reject(reason string) Verdict { return Verdict{Allowed: false, Reason: reason} }

// Guard is the RiskGuard of spec §4.3: policy + heartbeat liveness +
// escalating risk state, all pre-trade-checked in a fixed order.
type Guard struct {
	mu     sync.RWMutex
	policy *Policy

	lastHeartbeatMillis atomic.Int64
	stalenessWarned     atomic.Bool

	// transientWhitelist extends the symbol whitelist for
	// emergency-close overrides (spec §4.3 step 3 parenthetical).
	transientWhitelist []string

	log *zap.SugaredLogger
}

// NewGuard constructs a Guard seeded with an initial policy.
func NewGuard(policy *Policy, log *zap.SugaredLogger) *Guard {
	g := &Guard{policy: policy, log: log}
	return g
}

// SetPolicy atomically replaces the active policy (spec §4.12 "Policy
// update"). The caller logs the diff; this just swaps.
func (g *Guard) SetPolicy(p *Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = p
}

// Policy returns a snapshot pointer to the current policy. Callers
// must not mutate it.
func (g *Guard) Policy() *Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// Heartbeat stamps liveness from the strategy service (spec §4.12).
func (g *Guard) Heartbeat(nowMillis int64) {
	g.lastHeartbeatMillis.Store(nowMillis)
	g.stalenessWarned.Store(false)
}

// SetState is the direct operator override (spec §4.12 "State
// update"), bypassing the one-way escalation discipline.
func (g *Guard) SetState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy.CurrentState = s
}

// ExtendWhitelist adds a transient symbol allowance, used by the
// emergency-close override path.
func (g *Guard) ExtendWhitelist(symbols ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transientWhitelist = append(g.transientWhitelist, symbols...)
}

// effectiveState applies the liveness gate of spec §4.3 step 1: a
// stale heartbeat forces Defensive regardless of the stored value.
func (g *Guard) effectiveState(nowMillis int64) State {
	g.mu.RLock()
	policy := g.policy
	g.mu.RUnlock()

	maxStale := policy.MaxStalenessMillis
	if maxStale <= 0 {
		maxStale = 5000
	}
	last := g.lastHeartbeatMillis.Load()
	if last == 0 || nowMillis-last > maxStale {
		if !g.stalenessWarned.Swap(true) && g.log != nil {
			g.log.Warnw("risk guard: heartbeat stale, forcing Defensive",
				"last_heartbeat_ms", last, "now_ms", nowMillis, "max_staleness_ms", maxStale)
		}
		if severity[StateDefensive] > severity[policy.CurrentState] {
			return StateDefensive
		}
	}
	return policy.CurrentState
}

// Check runs the ordered pre-trade gate of spec §4.3; the first
// failure wins.
func (g *Guard) Check(req CheckRequest) Verdict {
	g.mu.RLock()
	policy := g.policy
	g.mu.RUnlock()

	state := g.effectiveState(req.NowMillis)
	reduceOnly := req.Intent.Kind.IsClose()

	// 2. State enforcement.
	if state == StateEmergency {
		return reject("EMERGENCY_STATE")
	}
	if state == StateDefensive && !reduceOnly {
		return reject("DEFENSIVE_STATE")
	}

	// 3. Symbol whitelist.
	g.mu.RLock()
	extra := append([]string(nil), g.transientWhitelist...)
	g.mu.RUnlock()
	if !policy.WhitelistAllows(req.Intent.Symbol, extra...) {
		return reject("SYMBOL_NOT_WHITELISTED")
	}

	// 4. Size sanity.
	if req.Intent.Size.Sign() <= 0 {
		return reject("INVALID_SIZE")
	}

	// 5. Daily loss cap.
	if !policy.MaxDailyLoss.IsZero() && req.TodayRealizedPnL.Cmp(policy.MaxDailyLoss) <= 0 && !reduceOnly {
		return reject("DAILY_LOSS_CAP")
	}

	// 6. Notional cap (only for exposure-increasing intents).
	if !reduceOnly {
		newNotional := req.ExistingNotional.Add(req.Intent.Size.Mul(req.ReferencePrice))
		if !policy.MaxPositionNotional.IsZero() && newNotional.Cmp(policy.MaxPositionNotional) > 0 {
			return reject("NOTIONAL_CAP_EXCEEDED")
		}
	}

	return allow()
}

// RecordFillSlippage escalates risk state from an observed fill's
// slippage in basis points (spec §4.3's escalation rules). Escalation
// only ever moves state to a higher severity; it never regresses.
func (g *Guard) RecordFillSlippage(slippageBps decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	policy := g.policy
	if policy.MaxSlippageBps.IsZero() {
		return
	}
	threshold := policy.MaxSlippageBps
	doubleThreshold := threshold.Mul(decimal.NewFromInt(2))

	target := policy.CurrentState
	switch {
	case slippageBps.Cmp(doubleThreshold) > 0:
		if policy.CurrentState != StateEmergency {
			target = StateDefensive
		}
	case slippageBps.Cmp(threshold) > 0:
		if policy.CurrentState == StateNormal {
			target = StateCautious
		}
	}
	if severity[target] > severity[policy.CurrentState] {
		if g.log != nil {
			g.log.Infow("risk guard: slippage-driven state escalation",
				"from", policy.CurrentState, "to", target, "slippage_bps", slippageBps.String())
		}
		policy.CurrentState = target
	}
}
