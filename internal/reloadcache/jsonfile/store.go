// Package jsonfile is the default ReloadCache persistence backend: a single
// JSON document on disk, matching the spec's "JSON-on-disk" baseline.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/deskmux/deskmux/pkg/models"
)

// Store persists CacheEntry records as one JSON array document.
type Store struct {
	path string
}

// New builds a Store writing to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the JSON document, returning an empty slice if it doesn't
// exist yet.
func (s *Store) Load(ctx context.Context) ([]models.CacheEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []models.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save rewrites the whole document.
func (s *Store) Save(ctx context.Context, entries []models.CacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
