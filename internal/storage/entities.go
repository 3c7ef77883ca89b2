package storage

import (
	"context"
	"fmt"
)

// SavePosition upserts one position's serialized record in a single
// transaction (spec §4.2).
func (s *Store) SavePosition(ctx context.Context, symbol string, data []byte) error {
	return s.inTx(ctx, `INSERT INTO positions (symbol, data) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET data = excluded.data`, symbol, data)
}

// DeletePosition removes a closed position's record.
func (s *Store) DeletePosition(ctx context.Context, symbol string) error {
	return s.inTx(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
}

// SaveIntent upserts one intent's serialized record.
func (s *Store) SaveIntent(ctx context.Context, signalID string, data []byte) error {
	return s.inTx(ctx, `INSERT INTO intents (signal_id, data) VALUES (?, ?)
		ON CONFLICT(signal_id) DO UPDATE SET data = excluded.data`, signalID, data)
}

// DeleteIntent removes a terminal intent's record.
func (s *Store) DeleteIntent(ctx context.Context, signalID string) error {
	return s.inTx(ctx, `DELETE FROM intents WHERE signal_id = ?`, signalID)
}

// SaveChildOrder upserts one (intent, venue) fan-out leg's record
// (spec §3's ChildOrderRecord, §4.10 step 7b).
func (s *Store) SaveChildOrder(ctx context.Context, clientOrderID string, data []byte) error {
	return s.inTx(ctx, `INSERT INTO child_orders (client_order_id, data) VALUES (?, ?)
		ON CONFLICT(client_order_id) DO UPDATE SET data = excluded.data`, clientOrderID, data)
}

// SaveTrade appends an immutable trade record and trims the table back
// to the most recent retain entries, implementing the bounded ring of
// spec §3 ("Trade history is a bounded ring retaining the most recent
// N (~1000)") at the persistence layer as well as in-memory.
func (s *Store) SaveTrade(ctx context.Context, closedAtMillis int64, data []byte, retain int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin save trade: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO trades (closed_at, data) VALUES (?, ?)`, closedAtMillis, data); err != nil {
		return fmt.Errorf("storage: insert trade: %w", err)
	}
	if retain > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM trades WHERE id NOT IN (
				SELECT id FROM trades ORDER BY id DESC LIMIT ?
			)`, retain); err != nil {
			return fmt.Errorf("storage: trim trades: %w", err)
		}
	}
	return tx.Commit()
}

// LoadAllPositions returns every persisted position, keyed by symbol.
func (s *Store) LoadAllPositions(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, data FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("storage: load positions: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var symbol string
		var data []byte
		if err := rows.Scan(&symbol, &data); err != nil {
			return nil, err
		}
		out[symbol] = data
	}
	return out, rows.Err()
}

// LoadAllIntents returns every persisted pending intent, keyed by signal id.
func (s *Store) LoadAllIntents(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT signal_id, data FROM intents`)
	if err != nil {
		return nil, fmt.Errorf("storage: load intents: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		out[id] = data
	}
	return out, rows.Err()
}

// LoadRecentTrades returns up to limit most-recent trade records,
// oldest first.
func (s *Store) LoadRecentTrades(ctx context.Context, limit int) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: load trades: %w", err)
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, query string, args ...interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: exec: %w", err)
	}
	return tx.Commit()
}
