package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/anatolykoptev/go_ytsaver/internal/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	c := NewFetchCache(store.NewMemory())

	calls := 0
	fetch := func(_ context.Context, id string) (CacheEntry, error) {
		calls++
		return CacheEntry{
			Info:       VideoRecord{ID: id, Title: "First"},
			Transcript: []TranscriptEntry{{Text: "hello", Start: 1.5, Duration: 2}},
		}, nil
	}

	got, err := c.GetOrFetch(ctx, "vid1", fetch)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Info.Title)

	again, err := c.GetOrFetch(ctx, "vid1", fetch)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, calls, "a cached id must not be fetched again")
}

func TestFetchCachePreloadedNeverFetches(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("cached", []byte(`{"info":{"id":"cached","title":"Old"},"transcript":[{"text":"x","start":0,"duration":5}]}`))
	c := NewFetchCache(mem)

	got, err := c.GetOrFetch(context.Background(), "cached", func(context.Context, string) (CacheEntry, error) {
		t.Fatal("fetch called for a cached id")
		return CacheEntry{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Info.Title)
	require.Len(t, got.Transcript, 1)
	assert.Equal(t, 5.0, got.Transcript[0].Duration)
}

func TestFetchCacheErrorNotStored(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := NewFetchCache(mem)

	_, err := c.GetOrFetch(ctx, "gone", func(context.Context, string) (CacheEntry, error) {
		return CacheEntry{}, NotFoundError("video", "gone")
	})
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := mem.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFetchCacheEmptyTranscriptBecomesSentinel(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("v", []byte(`{"info":{"id":"v"},"transcript":[]}`))
	c := NewFetchCache(mem)

	got, err := c.GetOrFetch(context.Background(), "v", nil)
	require.NoError(t, err)
	assert.True(t, IsSentinel(got.Transcript))
}
