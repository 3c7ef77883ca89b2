// Package risk implements spec §4.3: RiskPolicy, its canonical hash,
// and the RiskGuard pre-trade state machine.
package risk

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/envelope"
)

// State is the risk posture, increasing in severity (spec §3, GLOSSARY).
type State string

const (
	StateNormal     State = "Normal"
	StateCautious   State = "Cautious"
	StateDefensive  State = "Defensive"
	StateEmergency  State = "Emergency"
)

// severity orders states so escalation never regresses a higher state
// to a lower one by accident.
var severity = map[State]int{
	StateNormal:    0,
	StateCautious:  1,
	StateDefensive: 2,
	StateEmergency: 3,
}

// Policy is the authoritative limits and state document (spec §3).
type Policy struct {
	MaxPositionNotional  decimal.Decimal `json:"max_position_notional" yaml:"max_position_notional"`
	MaxAccountLeverage   decimal.Decimal `json:"max_account_leverage" yaml:"max_account_leverage"`
	MaxDailyLoss         decimal.Decimal `json:"max_daily_loss" yaml:"max_daily_loss"` // negative
	MaxOpenOrdersPerSym  int             `json:"max_open_orders_per_symbol" yaml:"max_open_orders_per_symbol"`
	MaxSlippageBps       decimal.Decimal `json:"max_slippage_bps" yaml:"max_slippage_bps"`
	MaxStalenessMillis   int64           `json:"max_staleness_ms" yaml:"max_staleness_ms"`

	SymbolWhitelist []string `json:"symbol_whitelist" yaml:"symbol_whitelist"`
	CurrentState    State    `json:"current_state" yaml:"current_state"`

	Version     int    `json:"version" yaml:"version"`
	LastUpdated int64  `json:"last_updated" yaml:"last_updated"`
	StrategyHint string `json:"strategy_hint,omitempty" yaml:"strategy_hint,omitempty"`
}

// Hash computes the SHA-256 over the canonical JSON serialization of
// the policy (spec §3's "policy_hash"). It deliberately excludes
// CurrentState so that risk-state escalation doesn't invalidate the
// hash intents were pinned against.
func (p *Policy) Hash() (string, error) {
	type hashable struct {
		MaxPositionNotional decimal.Decimal `json:"max_position_notional"`
		MaxAccountLeverage  decimal.Decimal `json:"max_account_leverage"`
		MaxDailyLoss        decimal.Decimal `json:"max_daily_loss"`
		MaxOpenOrdersPerSym int             `json:"max_open_orders_per_symbol"`
		MaxSlippageBps      decimal.Decimal `json:"max_slippage_bps"`
		MaxStalenessMillis  int64           `json:"max_staleness_ms"`
		SymbolWhitelist     []string        `json:"symbol_whitelist"`
		Version             int             `json:"version"`
	}
	h := hashable{
		MaxPositionNotional: p.MaxPositionNotional,
		MaxAccountLeverage:  p.MaxAccountLeverage,
		MaxDailyLoss:        p.MaxDailyLoss,
		MaxOpenOrdersPerSym: p.MaxOpenOrdersPerSym,
		MaxSlippageBps:      p.MaxSlippageBps,
		MaxStalenessMillis:  p.MaxStalenessMillis,
		SymbolWhitelist:     sortedCopy(p.SymbolWhitelist),
		Version:             p.Version,
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	canon, err := envelope.Canonicalize(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return fmt.Sprintf("%x", sum), nil
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// WhitelistAllows reports whether symbol is tradeable under the
// whitelist, honoring the empty-whitelist-bypass rule of spec §8.
func (p *Policy) WhitelistAllows(symbol string, extra ...string) bool {
	if len(p.SymbolWhitelist) == 0 {
		return true
	}
	for _, s := range p.SymbolWhitelist {
		if s == symbol {
			return true
		}
	}
	for _, s := range extra {
		if s == symbol {
			return true
		}
	}
	return false
}
