package consumer

import (
	"sync"

	"github.com/titanx/execution-core/internal/simulate"
)

// TickerStore is the engine's read side of the market-data contract
// (spec §6): a per-symbol top-of-book snapshot, updated by the ticker
// side subscription and read by the pipeline's shadow-fill synthesis.
type TickerStore struct {
	mu   sync.RWMutex
	book map[string]simulate.TopOfBook
}

// NewTickerStore constructs an empty store.
func NewTickerStore() *TickerStore {
	return &TickerStore{book: make(map[string]simulate.TopOfBook)}
}

// TopOfBook implements pipeline.MarketData.
func (t *TickerStore) TopOfBook(symbol string) (simulate.TopOfBook, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.book[symbol]
	return b, ok
}

// Set records a fresh top-of-book snapshot.
func (t *TickerStore) Set(b simulate.TopOfBook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.book[b.Symbol] = b
}

// Symbols lists every symbol with a known snapshot.
func (t *TickerStore) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.book))
	for s := range t.book {
		out = append(out, s)
	}
	return out
}
