package reloadcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/pkg/models"
)

// Lookup is the result of Cache.Lookup.
type Lookup struct {
	Exact      *models.CacheEntry
	Candidates []models.CacheEntry
}

// Cache is a persistent mapping from fingerprint/id to CacheEntry, with
// exact-hit and similarity-ranked fuzzy lookup.
type Cache struct {
	mu              sync.Mutex
	entries         map[string]models.CacheEntry
	store           Store
	exactThreshold  float64
	fuzzyThreshold  float64
	topK            int
}

// New builds a Cache backed by store, loading any prior entries.
func New(ctx context.Context, store Store, exactThreshold, fuzzyThreshold float64, topK int) (*Cache, error) {
	c := &Cache{
		entries:        make(map[string]models.CacheEntry),
		store:          store,
		exactThreshold: exactThreshold,
		fuzzyThreshold: fuzzyThreshold,
		topK:           topK,
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reloadcache: load: %w", err)
	}
	for _, e := range loaded {
		c.entries[e.ID] = e
	}
	return c, nil
}

// Record stores a new CacheEntry and persists it.
func (c *Cache) Record(ctx context.Context, fp models.Fingerprint, actions []models.Action, label string, requiredWindowIDs []string) (string, error) {
	c.mu.Lock()
	entry := models.CacheEntry{
		ID:                uuid.NewString(),
		Label:             label,
		Fingerprint:       fp,
		Actions:           actions,
		RequiredWindowIDs: requiredWindowIDs,
	}
	c.entries[entry.ID] = entry
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		return "", fmt.Errorf("reloadcache: save: %w", err)
	}
	return entry.ID, nil
}

func (c *Cache) snapshotLocked() []models.CacheEntry {
	out := make([]models.CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Lookup returns an exact match if one exists, plus up to topK fuzzy
// candidates above the fuzzy threshold, ranked by similarity descending.
func (c *Cache) Lookup(fp models.Fingerprint) Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	type scored struct {
		entry models.CacheEntry
		score float64
	}
	var candidates []scored
	var exact *models.CacheEntry

	for _, e := range c.entries {
		sim := Similarity(fp, e.Fingerprint)
		if exact == nil && IsExactMatch(fp, e.Fingerprint, c.exactThreshold) {
			copyEntry := e
			exact = &copyEntry
		}
		if sim >= c.fuzzyThreshold {
			candidates = append(candidates, scored{entry: e, score: sim})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > c.topK {
		candidates = candidates[:c.topK]
	}

	out := Lookup{Exact: exact}
	for _, s := range candidates {
		out.Candidates = append(out.Candidates, s.entry)
	}
	return out
}

// MarkUsed bumps an entry's use counter and last-used timestamp.
func (c *Cache) MarkUsed(ctx context.Context, id string) error {
	return c.update(ctx, id, func(e *models.CacheEntry) {
		e.UseCount++
		e.LastUsedAt = time.Now()
	})
}

// MarkFailed bumps an entry's fail counter.
func (c *Cache) MarkFailed(ctx context.Context, id string) error {
	return c.update(ctx, id, func(e *models.CacheEntry) { e.FailCount++ })
}

func (c *Cache) update(ctx context.Context, id string, mutate func(*models.CacheEntry)) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return errs.New(errs.KindContractViolation, errs.ErrNotFound)
	}
	mutate(&e)
	c.entries[id] = e
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	return c.store.Save(ctx, snapshot)
}

// Invalidate marks id failed because a required window no longer exists.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.MarkFailed(ctx, id)
}

// ValidateReplay reports whether every entry's RequiredWindowIDs still
// exist, per hasWindow. A replay attempt must call this first; on failure
// the entry is marked failed and replay is refused.
func (c *Cache) ValidateReplay(ctx context.Context, entry models.CacheEntry, hasWindow func(id string) bool) error {
	for _, id := range entry.RequiredWindowIDs {
		if !hasWindow(id) {
			_ = c.Invalidate(ctx, entry.ID)
			return errs.New(errs.KindCacheInvalidation, errs.ErrWindowMissing)
		}
	}
	return nil
}
