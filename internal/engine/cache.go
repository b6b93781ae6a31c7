package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_ytsaver/internal/engine/store"
)

// FetchFunc fetches metadata and transcript for a video that is not cached yet.
type FetchFunc func(ctx context.Context, videoID string) (CacheEntry, error)

// FetchCache maps video id → CacheEntry over a store.Store. An id that is
// already stored is returned without calling FetchFunc; entries never expire.
type FetchCache struct {
	store store.Store
}

// NewFetchCache wraps s.
func NewFetchCache(s store.Store) *FetchCache {
	return &FetchCache{store: s}
}

// GetOrFetch returns the cached entry for id, calling fetch only on a miss.
// A fetch error is returned as-is and nothing is stored.
func (c *FetchCache) GetOrFetch(ctx context.Context, id string, fetch FetchFunc) (CacheEntry, error) {
	raw, created, err := c.store.Upsert(ctx, id, func(ctx context.Context) ([]byte, error) {
		entry, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entry)
	})
	if err != nil {
		return CacheEntry{}, err
	}
	if created {
		metrics.CacheMisses.Add(1)
		slog.Debug("cache: stored", slog.String("id", id))
	} else {
		metrics.CacheHits.Add(1)
		slog.Debug("cache: hit", slog.String("id", id))
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, fmt.Errorf("cache: decode %s: %w", id, err)
	}
	if len(entry.Transcript) == 0 {
		entry.Transcript = SentinelTranscript()
	}
	return entry, nil
}

// Save persists entries added during this run.
func (c *FetchCache) Save(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Close releases the underlying store.
func (c *FetchCache) Close() error {
	return c.store.Close()
}

// Len returns the number of cached videos.
func (c *FetchCache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}
