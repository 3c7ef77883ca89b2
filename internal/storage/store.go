// Package storage implements spec §4.2: an embedded, single-writer
// KV store holding the WAL and the entity tables. modernc.org/sqlite
// is the pack's closest real analogue to the "any single-writer MVCC
// engine" spec.md asks for (stadam23/Eve-flipper's internal/db/db.go
// idiom: one file, WAL-mode pragmas, migrated table set) — there is no
// actual embedded KV engine (redb, bbolt, badger) anywhere in the
// retrieval pack.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite-backed WAL + entity tables.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and runs migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline (spec §4.2)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS wal_log (
			seq       INTEGER PRIMARY KEY,
			type      TEXT NOT NULL,
			ts_millis INTEGER NOT NULL,
			payload   BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			data   BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS intents (
			signal_id TEXT PRIMARY KEY,
			data      BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			closed_at  INTEGER NOT NULL,
			data       BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);

		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key       TEXT PRIMARY KEY,
			expiry_ms INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS child_orders (
			client_order_id TEXT PRIMARY KEY,
			data            BLOB NOT NULL
		);
	`)
	return err
}
