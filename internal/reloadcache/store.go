package reloadcache

import (
	"context"

	"github.com/deskmux/deskmux/pkg/models"
)

// Store is the persistence boundary for CacheEntry records, letting the
// backing storage vary (JSON file, sqlite, S3) without the orchestrator
// caring which.
type Store interface {
	Load(ctx context.Context) ([]models.CacheEntry, error)
	Save(ctx context.Context, entries []models.CacheEntry) error
}
