// Package shadow holds the engine's shadow state (spec §3, §4.11): the
// current position per symbol, the pending-intent map, and the bounded
// trade history ring, all guarded by one RWMutex and mirrored into the
// storage package's entity tables inside each mutating call.
package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/titanx/execution-core/internal/model"
	"github.com/titanx/execution-core/internal/storage"
)

// ErrIntentNotPending is returned by ConfirmExecution when no pending
// intent matches the fill's signal id (spec §4.11 step 2: "warn and
// return").
var ErrIntentNotPending = errors.New("shadow: no pending intent for signal id")

// FillInput is one venue fill attributed to an intent (spec §4.11).
type FillInput struct {
	SignalID    string
	ChildFillID string
	Price       decimal.Decimal
	Qty         decimal.Decimal
	Filled      bool
	RejectReason string
	Fee         decimal.Decimal
	FeeCurrency string
	NowMillis   int64
}

// Exposure is the cross-position aggregate spec §4.11 asks downstream
// reporting to be able to read.
type Exposure struct {
	LongNotional  decimal.Decimal
	ShortNotional decimal.Decimal
	Net           decimal.Decimal
	Gross         decimal.Decimal
	LongCount     int
	ShortCount    int
}

// State is the in-memory shadow book, backed by storage.Store.
type State struct {
	mu sync.RWMutex

	positions map[string]*model.Position
	pending   map[string]*model.Intent
	trades    []model.TradeRecord

	store  *storage.Store
	retain int
}

// New constructs an empty shadow state. Call RecoverFromStore before
// serving traffic to rehydrate from the last run.
func New(store *storage.Store, retain int) *State {
	return &State{
		positions: make(map[string]*model.Position),
		pending:   make(map[string]*model.Intent),
		store:     store,
		retain:    retain,
	}
}

// RecoverFromStore loads persisted positions, pending intents, and
// recent trades into memory, in the teacher's boot-time recovery idiom.
func (s *State) RecoverFromStore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posRows, err := s.store.LoadAllPositions(ctx)
	if err != nil {
		return fmt.Errorf("shadow: recover positions: %w", err)
	}
	for symbol, raw := range posRows {
		var p model.Position
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("shadow: decode position %s: %w", symbol, err)
		}
		s.positions[symbol] = &p
	}

	intentRows, err := s.store.LoadAllIntents(ctx)
	if err != nil {
		return fmt.Errorf("shadow: recover intents: %w", err)
	}
	for signalID, raw := range intentRows {
		var it model.Intent
		if err := json.Unmarshal(raw, &it); err != nil {
			return fmt.Errorf("shadow: decode intent %s: %w", signalID, err)
		}
		if it.Status.Terminal() {
			continue
		}
		s.pending[signalID] = &it
	}

	tradeRows, err := s.store.LoadRecentTrades(ctx, s.retain)
	if err != nil {
		return fmt.Errorf("shadow: recover trades: %w", err)
	}
	for _, raw := range tradeRows {
		var t model.TradeRecord
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("shadow: decode trade: %w", err)
		}
		s.trades = append(s.trades, t)
	}
	return nil
}

// RegisterIntent implements pipeline step 2: mark the intent Pending
// and persist it, making it visible to subsequent fills.
func (s *State) RegisterIntent(ctx context.Context, it *model.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it.Status = model.StatusPending
	if it.ChildFills == nil {
		it.ChildFills = make(map[string]model.ChildFillKey)
	}
	s.pending[it.SignalID] = it
	if payload, err := json.Marshal(it); err == nil {
		if _, err := s.store.AppendWAL(ctx, model.WALIntentReceived, it.TIngress, payload); err != nil {
			return err
		}
	}
	return s.persistIntentLocked(ctx, it)
}

// ExpireIntent implements pipeline step 3: drop a stale intent from the
// pending map and record it as Expired.
func (s *State) ExpireIntent(ctx context.Context, signalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.pending[signalID]
	if !ok {
		return nil
	}
	it.Status = model.StatusExpired
	delete(s.pending, signalID)
	return s.store.DeleteIntent(ctx, signalID)
}

// GetIntent returns the pending intent for signalID, if any.
func (s *State) GetIntent(signalID string) (*model.Intent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.pending[signalID]
	return it, ok
}

// GetPosition returns a copy of the current position on symbol, if any.
func (s *State) GetPosition(symbol string) (model.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// AllPositions returns a snapshot of every open position.
func (s *State) AllPositions() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// RecentTrades returns up to limit of the most recently closed trades,
// oldest first.
func (s *State) RecentTrades(limit int) []model.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.trades) {
		limit = len(s.trades)
	}
	out := make([]model.TradeRecord, limit)
	copy(out, s.trades[len(s.trades)-limit:])
	return out
}

// Exposure computes the cross-position aggregate of spec §4.11.
func (s *State) Exposure() Exposure {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Exposure
	e.LongNotional, e.ShortNotional = decimal.Zero, decimal.Zero
	for _, p := range s.positions {
		n := p.Notional()
		if p.Side == model.SideLong {
			e.LongNotional = e.LongNotional.Add(n)
			e.LongCount++
		} else {
			e.ShortNotional = e.ShortNotional.Add(n)
			e.ShortCount++
		}
	}
	e.Net = e.LongNotional.Sub(e.ShortNotional)
	e.Gross = e.LongNotional.Add(e.ShortNotional)
	return e
}

// TodayRealizedPnL sums the PnL of trades closed since the start of
// nowMillis's UTC day, the figure the risk guard's daily loss cap
// checks against (spec §4.3).
func (s *State) TodayRealizedPnL(nowMillis int64) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := time.UnixMilli(nowMillis).UTC().Truncate(24 * time.Hour).UnixMilli()
	total := decimal.Zero
	for _, t := range s.trades {
		if t.ClosedAt >= dayStart {
			total = total.Add(t.PnL)
		}
	}
	return total
}

// ApplyMark updates the mark price and unrealized PnL of an open
// position, persisting the change. It is a no-op when no position is
// open on the symbol.
func (s *State) ApplyMark(ctx context.Context, symbol string, price decimal.Decimal, nowMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return nil
	}
	p.ApplyMark(price, nowMillis)
	return s.persistPositionLocked(ctx, p)
}

// OrderPlacedInput is the WAL payload for one router fan-out leg being
// submitted (spec §4.10 step 7, §4.2's `OrderPlaced` entry).
type OrderPlacedInput struct {
	SignalID      string          `json:"signal_id"`
	Venue         string          `json:"venue"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
}

// RecordOrderPlaced appends a WAL `OrderPlaced` entry for one router
// leg, independent of whether that leg ultimately fills (spec §4.10
// step 7, property S4: "exactly one WAL OrderPlaced" per leg).
func (s *State) RecordOrderPlaced(ctx context.Context, in OrderPlacedInput, nowMillis int64) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("shadow: encode order placed: %w", err)
	}
	_, err = s.store.AppendWAL(ctx, model.WALOrderPlaced, nowMillis, payload)
	return err
}

// RecordChildOrder persists the per-(intent, venue) fan-out leg record
// (spec §3's ChildOrderRecord, §4.10 step 7b).
func (s *State) RecordChildOrder(ctx context.Context, rec model.ChildOrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("shadow: encode child order: %w", err)
	}
	return s.store.SaveChildOrder(ctx, rec.ClientOrderID, data)
}

// recordStateCorrectionLocked appends a WAL `StateCorrection` entry for
// a drift the fill-aggregation algorithm detected but could not apply
// (spec §4.2's StateCorrection kind): an unknown signal id, or a close
// fill against a position that no longer exists.
func (s *State) recordStateCorrectionLocked(ctx context.Context, signalID, symbol, reason string, nowMillis int64) error {
	payload, err := json.Marshal(struct {
		SignalID string `json:"signal_id"`
		Symbol   string `json:"symbol,omitempty"`
		Reason   string `json:"reason"`
	}{SignalID: signalID, Symbol: symbol, Reason: reason})
	if err != nil {
		return fmt.Errorf("shadow: encode state correction: %w", err)
	}
	_, err = s.store.AppendWAL(ctx, model.WALStateCorrection, nowMillis, payload)
	return err
}

// ConfirmExecution implements the fill-aggregation algorithm of spec
// §4.11 end to end: idempotency, intent lookup, the not-filled/close/
// open paths, the intent filled_size update, and the WAL entry. It
// returns the events the pipeline should publish.
func (s *State) ConfirmExecution(ctx context.Context, in FillInput) ([]Event, model.IntentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.pending[in.SignalID]
	if !ok {
		_ = s.recordStateCorrectionLocked(ctx, in.SignalID, "", "unknown_signal_id", in.NowMillis)
		return nil, "", ErrIntentNotPending
	}
	if it.ChildFills == nil {
		it.ChildFills = make(map[string]model.ChildFillKey)
	}
	if _, dup := it.ChildFills[in.ChildFillID]; dup {
		return nil, it.Status, nil
	}

	if !in.Filled {
		it.Status = model.StatusRejected
		delete(s.pending, in.SignalID)
		return nil, model.StatusRejected, s.store.DeleteIntent(ctx, in.SignalID)
	}

	var events []Event
	var err error

	if it.Kind.IsClose() {
		events, err = s.applyClose(ctx, it, in)
	} else {
		events, err = s.applyOpen(ctx, it, in)
	}
	if err != nil {
		return nil, "", err
	}
	if events == nil {
		// spurious close against a nonexistent position: spec §4.11
		// step 4 says log and return without touching the intent.
		_ = s.recordStateCorrectionLocked(ctx, it.SignalID, it.Symbol, "spurious_close", in.NowMillis)
		return nil, it.Status, nil
	}

	it.ChildFills[in.ChildFillID] = model.ChildFillKey{ChildFillID: in.ChildFillID}
	it.FilledSize = it.FilledSize.Add(in.Qty)
	timedOut := it.AggregationDeadlineMillis > 0 && in.NowMillis > it.AggregationDeadlineMillis

	switch {
	case it.FilledSize.GreaterThanOrEqual(it.Size):
		it.Status = model.StatusExecuted
		delete(s.pending, in.SignalID)
		if err := s.store.DeleteIntent(ctx, in.SignalID); err != nil {
			return nil, "", err
		}
	case timedOut:
		it.Status = model.StatusPartiallyCompleted
		delete(s.pending, in.SignalID)
		if err := s.store.DeleteIntent(ctx, in.SignalID); err != nil {
			return nil, "", err
		}
	default:
		if err := s.persistIntentLocked(ctx, it); err != nil {
			return nil, "", err
		}
	}

	if payload, merr := json.Marshal(in); merr == nil {
		if _, err := s.store.AppendWAL(ctx, model.WALExecutionReport, in.NowMillis, payload); err != nil {
			return nil, "", err
		}
	}
	return events, it.Status, nil
}

// applyClose handles spec §4.11 step 4. A nil, nil return (no error,
// no events) signals the spurious-close case.
func (s *State) applyClose(ctx context.Context, it *model.Intent, in FillInput) ([]Event, error) {
	pos, exists := s.positions[it.Symbol]
	if !exists {
		return nil, nil
	}

	closeSize := decimal.Min(in.Qty, pos.Size)
	trade := model.NewTradeRecord(it.SignalID, it.Symbol, pos.Side, pos.EntryPrice, in.Price, closeSize, pos.OpenedAt, in.NowMillis, "intent_close")
	pos.RealizedPnL = pos.RealizedPnL.Add(trade.PnL)
	pos.FeesPaid = pos.FeesPaid.Add(in.Fee)

	var events []Event
	if closeSize.LessThan(pos.Size) {
		pos.Size = pos.Size.Sub(closeSize)
		pos.LastUpdateTS = in.NowMillis
		events = append(events, Event{Kind: EventPositionUpdated, Position: clonePosition(pos)})
		if err := s.persistPositionLocked(ctx, pos); err != nil {
			return nil, err
		}
	} else {
		delete(s.positions, it.Symbol)
		events = append(events, Event{Kind: EventPositionClosed, Position: clonePosition(pos)})
		if err := s.store.DeletePosition(ctx, it.Symbol); err != nil {
			return nil, err
		}
	}
	events = append(events, Event{Kind: EventTradeCompleted, Trade: &trade})
	if err := s.appendTradeLocked(ctx, trade); err != nil {
		return nil, err
	}
	return events, nil
}

// applyOpen handles spec §4.11 step 5: open, pyramid, or flip.
func (s *State) applyOpen(ctx context.Context, it *model.Intent, in FillInput) ([]Event, error) {
	wantSide := model.SideLong
	if it.Direction == model.DirectionShort {
		wantSide = model.SideShort
	}

	pos, exists := s.positions[it.Symbol]
	switch {
	case !exists:
		fresh := newPosition(it, wantSide, in)
		s.positions[it.Symbol] = fresh
		if err := s.persistPositionLocked(ctx, fresh); err != nil {
			return nil, err
		}
		return []Event{{Kind: EventPositionOpened, Position: clonePosition(fresh)}}, nil

	case pos.Side == wantSide:
		pos.Pyramid(in.Price, in.Qty, in.NowMillis)
		pos.FeesPaid = pos.FeesPaid.Add(in.Fee)
		if err := s.persistPositionLocked(ctx, pos); err != nil {
			return nil, err
		}
		return []Event{{Kind: EventPositionUpdated, Position: clonePosition(pos)}}, nil

	default:
		return s.applyFlip(ctx, it, pos, wantSide, in)
	}
}

// applyFlip closes the opposing position and, if the fill overshoots
// it, opens the residual on the new side (spec §4.11 step 5, flip).
func (s *State) applyFlip(ctx context.Context, it *model.Intent, pos *model.Position, wantSide model.Side, in FillInput) ([]Event, error) {
	closeSize := decimal.Min(in.Qty, pos.Size)
	trade := model.NewTradeRecord(it.SignalID, it.Symbol, pos.Side, pos.EntryPrice, in.Price, closeSize, pos.OpenedAt, in.NowMillis, "flip")
	pos.RealizedPnL = pos.RealizedPnL.Add(trade.PnL)
	pos.FeesPaid = pos.FeesPaid.Add(in.Fee)
	residual := in.Qty.Sub(closeSize)

	var events []Event
	if closeSize.GreaterThanOrEqual(pos.Size) {
		delete(s.positions, it.Symbol)
		events = append(events, Event{Kind: EventPositionClosed, Position: clonePosition(pos)})
		if err := s.store.DeletePosition(ctx, it.Symbol); err != nil {
			return nil, err
		}
	} else {
		pos.Size = pos.Size.Sub(closeSize)
		pos.LastUpdateTS = in.NowMillis
		events = append(events, Event{Kind: EventPositionUpdated, Position: clonePosition(pos)})
		if err := s.persistPositionLocked(ctx, pos); err != nil {
			return nil, err
		}
	}
	events = append(events, Event{Kind: EventTradeCompleted, Trade: &trade})
	if err := s.appendTradeLocked(ctx, trade); err != nil {
		return nil, err
	}

	if residual.IsPositive() {
		fresh := newPosition(it, wantSide, FillInput{Price: in.Price, Qty: residual, NowMillis: in.NowMillis})
		s.positions[it.Symbol] = fresh
		events = append(events, Event{Kind: EventPositionOpened, Position: clonePosition(fresh)})
		if err := s.persistPositionLocked(ctx, fresh); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func newPosition(it *model.Intent, side model.Side, in FillInput) *model.Position {
	return &model.Position{
		Symbol:        it.Symbol,
		Side:          side,
		Size:          in.Qty,
		EntryPrice:    in.Price,
		StopLoss:      it.StopLoss,
		TakeProfits:   it.TakeProfits,
		SignalID:      it.SignalID,
		OpenedAt:      in.NowMillis,
		LastMarkPrice: in.Price,
		FeesPaid:      in.Fee,
		LastUpdateTS:  in.NowMillis,
	}
}

func clonePosition(p *model.Position) *model.Position {
	cp := *p
	return &cp
}

func (s *State) persistPositionLocked(ctx context.Context, p *model.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("shadow: encode position: %w", err)
	}
	return s.store.SavePosition(ctx, p.Symbol, data)
}

func (s *State) persistIntentLocked(ctx context.Context, it *model.Intent) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("shadow: encode intent: %w", err)
	}
	return s.store.SaveIntent(ctx, it.SignalID, data)
}

func (s *State) appendTradeLocked(ctx context.Context, t model.TradeRecord) error {
	s.trades = append(s.trades, t)
	if s.retain > 0 && len(s.trades) > s.retain {
		s.trades = s.trades[len(s.trades)-s.retain:]
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("shadow: encode trade: %w", err)
	}
	return s.store.SaveTrade(ctx, t.ClosedAt, data, s.retain)
}
