package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ClaimIdempotencyKey implements spec §4.2's idempotency rule: on
// first sight the key is set with the envelope's TTL as its expiry. A
// re-seen key whose expiry is still in the future is a duplicate
// (fresh=false); an expired key behaves as fresh and is reclaimed with
// the new expiry.
func (s *Store) ClaimIdempotencyKey(ctx context.Context, key string, nowMillis, expiryMillis int64) (fresh bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("storage: begin idempotency claim: %w", err)
	}
	defer tx.Rollback()

	var existingExpiry int64
	err = tx.QueryRowContext(ctx, `SELECT expiry_ms FROM idempotency_keys WHERE key = ?`, key).Scan(&existingExpiry)
	switch {
	case err == nil:
		if existingExpiry > nowMillis {
			return false, tx.Commit() // duplicate within TTL
		}
		// expired: fall through and reclaim
	case errors.Is(err, sql.ErrNoRows):
		// fresh: fall through and insert
	default:
		return false, fmt.Errorf("storage: idempotency lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO idempotency_keys (key, expiry_ms) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET expiry_ms = excluded.expiry_ms`, key, expiryMillis); err != nil {
		return false, fmt.Errorf("storage: idempotency upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage: idempotency commit: %w", err)
	}
	return true, nil
}
