// Package sqlitestore is a ReloadCache persistence backend that keeps one
// row per cache entry and writes each Save in a single transaction, backed by
// modernc.org/sqlite (pure Go, no cgo). Save replaces every row; it does not
// write only the changed entries.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/deskmux/deskmux/pkg/models"
)

// Store persists one row per CacheEntry in a sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the cache_entries table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns every stored CacheEntry.
func (s *Store) Load(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query: %w", err)
	}
	defer rows.Close()

	var out []models.CacheEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan: %w", err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("sqlitestore: decode: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Save replaces the whole table with entries inside one transaction.
func (s *Store) Save(ctx context.Context, entries []models.CacheEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("sqlitestore: clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cache_entries (id, payload) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("sqlitestore: encode: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(payload)); err != nil {
			return fmt.Errorf("sqlitestore: insert: %w", err)
		}
	}
	return tx.Commit()
}
