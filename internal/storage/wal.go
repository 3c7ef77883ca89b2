package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/titanx/execution-core/internal/model"
)

// AppendWAL discovers the current maximum sequence id and inserts
// max+1 inside one write transaction, so sequence ids stay unique and
// gapless under single-writer discipline (spec §4.2).
func (s *Store) AppendWAL(ctx context.Context, entryType model.WALEntryType, tsMillis int64, payload []byte) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: begin wal append: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM wal_log`).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("storage: wal max seq: %w", err)
	}
	next := uint64(maxSeq.Int64) + 1

	if _, err := tx.ExecContext(ctx, `INSERT INTO wal_log (seq, type, ts_millis, payload) VALUES (?, ?, ?, ?)`,
		next, string(entryType), tsMillis, payload); err != nil {
		return 0, fmt.Errorf("storage: wal insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: wal commit: %w", err)
	}
	return next, nil
}

// LoadWAL returns every WAL entry in sequence order, for post-mortem
// replay (spec §4.13 reads its event stream from elsewhere, but
// operational tooling can rehydrate the WAL through this path).
func (s *Store) LoadWAL(ctx context.Context) ([]model.WALEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, type, ts_millis, payload FROM wal_log ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: load wal: %w", err)
	}
	defer rows.Close()

	var out []model.WALEntry
	for rows.Next() {
		var e model.WALEntry
		var typ string
		if err := rows.Scan(&e.Sequence, &typ, &e.TSMillis, &e.Payload); err != nil {
			return nil, fmt.Errorf("storage: scan wal: %w", err)
		}
		e.Type = model.WALEntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
