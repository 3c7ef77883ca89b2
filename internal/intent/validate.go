// Package intent implements spec §4.9: a pure function from raw bytes
// to a typed model.Intent, or a descriptive error. No loose maps leak
// past this package.
package intent

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/titanx/execution-core/internal/model"
)

// rawIntent mirrors the wire shape loosely: optional fields are
// pointers (*int, *int64, *decimal.Decimal) so an absent field is told
// apart from a zero one, "timestamp" can alias t_signal, and missing
// arrays are defaulted before binding into model.Intent.
type rawIntent struct {
	SignalID    string            `json:"signal_id"`
	Symbol      string            `json:"symbol"`
	Direction   *int              `json:"direction"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	EntryZone   []decimal.Decimal `json:"entry_zone"`
	StopLoss    decimal.Decimal   `json:"stop_loss"`
	TakeProfits []decimal.Decimal `json:"take_profits"`
	Size        *decimal.Decimal  `json:"size"`

	TSignal   *int64 `json:"t_signal"`
	Timestamp *int64 `json:"timestamp"` // alias for t_signal
	TIngress  int64  `json:"t_ingress"`
	TAnalysis int64  `json:"t_analysis"`
	TDecision int64  `json:"t_decision"`
	TExchange int64  `json:"t_exchange"`

	TTLMillis     int64  `json:"ttl_ms"`
	PartitionKey  string `json:"partition_key"`
	CausationID   string `json:"causation_id"`
	CorrelationID string `json:"correlation_id"`
	PolicyHash    string `json:"policy_hash"`

	ExpectedProfitPct *decimal.Decimal `json:"expected_profit_pct"`
	Source            string           `json:"source"`
}

var validKinds = map[string]model.IntentKind{
	string(model.KindBuySetup):   model.KindBuySetup,
	string(model.KindSellSetup):  model.KindSellSetup,
	string(model.KindCloseLong):  model.KindCloseLong,
	string(model.KindCloseShort): model.KindCloseShort,
	string(model.KindClose):      model.KindClose,
}

var validStatuses = map[string]model.IntentStatus{
	string(model.StatusPending):   model.StatusPending,
	string(model.StatusValidated): model.StatusValidated,
	string(model.StatusRejected):  model.StatusRejected,
	string(model.StatusExecuted):  model.StatusExecuted,
	string(model.StatusExpired):   model.StatusExpired,
}

// Validate parses raw bytes into a typed Intent, applying the alias
// and default rules of spec §4.9, or returns a descriptive error.
func Validate(raw []byte) (*model.Intent, error) {
	var r rawIntent
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("intent: malformed json: %w", err)
	}

	if r.SignalID == "" {
		return nil, fmt.Errorf("intent: signal_id is required")
	}
	if r.Symbol == "" {
		return nil, fmt.Errorf("intent: symbol is required")
	}

	tSignal := r.TSignal
	if tSignal == nil {
		tSignal = r.Timestamp // alias: timestamp -> t_signal
	}
	if tSignal == nil || *tSignal == 0 {
		return nil, fmt.Errorf("intent: t_signal is required")
	}

	if r.Direction == nil {
		return nil, fmt.Errorf("intent: direction is required")
	}
	dir := model.Direction(*r.Direction)
	if dir != model.DirectionShort && dir != model.DirectionFlat && dir != model.DirectionLong {
		return nil, fmt.Errorf("intent: direction out of range: %d", *r.Direction)
	}

	kind, ok := validKinds[r.Kind]
	if !ok {
		return nil, fmt.Errorf("intent: unknown kind %q", r.Kind)
	}

	status := model.StatusPending
	if r.Status != "" {
		s, ok := validStatuses[r.Status]
		if !ok {
			return nil, fmt.Errorf("intent: unknown status %q", r.Status)
		}
		status = s
	}

	if r.Size == nil {
		return nil, fmt.Errorf("intent: size is required")
	}

	entryZone := r.EntryZone
	if entryZone == nil {
		entryZone = []decimal.Decimal{}
	}
	takeProfits := r.TakeProfits
	if takeProfits == nil {
		takeProfits = []decimal.Decimal{}
	}

	it := &model.Intent{
		SignalID:      r.SignalID,
		Symbol:        r.Symbol,
		Direction:     dir,
		Kind:          kind,
		EntryZone:     entryZone,
		StopLoss:      r.StopLoss,
		TakeProfits:   takeProfits,
		Size:          *r.Size,
		Status:        status,
		TSignal:       *tSignal,
		TIngress:      r.TIngress,
		TAnalysis:     r.TAnalysis,
		TDecision:     r.TDecision,
		TExchange:     r.TExchange,
		TTLMillis:     r.TTLMillis,
		PartitionKey:  r.PartitionKey,
		CausationID:   r.CausationID,
		CorrelationID: r.CorrelationID,
		PolicyHash:    r.PolicyHash,
		Source:        r.Source,
		FilledSize:    decimal.Zero,
	}
	if r.ExpectedProfitPct != nil {
		it.ExpectedProfitPct = decimal.NewNullDecimal(*r.ExpectedProfitPct)
	}
	return it, nil
}

// Marshal round-trips a typed Intent back to wire bytes (spec §8's
// round-trip law: Validate(Marshal(Validate(x))) == Validate(x)).
func Marshal(it *model.Intent) ([]byte, error) {
	return json.Marshal(it)
}
