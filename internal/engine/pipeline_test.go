package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_ytsaver/internal/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	videos    map[string]VideoRecord
	playlists map[string]PlaylistRecord
	items     map[string][]string
	channels  map[string]ChannelRecord

	videoCalls map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		videos: map[string]VideoRecord{
			"vid1": {ID: "vid1", Title: "First Video", ChannelTitle: "My Chan", ChannelID: "UC1", PublishedAt: "2024-01-01T00:00:00Z"},
			"vid2": {ID: "vid2", Title: "Second Video", ChannelTitle: "My Chan", ChannelID: "UC1", PublishedAt: "2024-01-02T00:00:00Z"},
		},
		playlists: map[string]PlaylistRecord{
			"PL1": {ID: "PL1", Title: "Best Of", ChannelID: "UC1"},
		},
		items:      map[string][]string{"PL1": {"vid1", "gone", "vid2"}},
		channels:   map[string]ChannelRecord{"UC1": {ID: "UC1", Title: "My Chan"}},
		videoCalls: map[string]int{},
	}
}

func (f *fakeCatalog) Video(_ context.Context, id string) (VideoRecord, error) {
	f.videoCalls[id]++
	v, ok := f.videos[id]
	if !ok {
		return VideoRecord{}, NotFoundError("video", id)
	}
	return v, nil
}

func (f *fakeCatalog) Playlist(_ context.Context, id string) (PlaylistRecord, error) {
	p, ok := f.playlists[id]
	if !ok {
		return PlaylistRecord{}, NotFoundError("playlist", id)
	}
	return p, nil
}

func (f *fakeCatalog) PlaylistVideoIDs(_ context.Context, id string) ([]string, error) {
	return f.items[id], nil
}

func (f *fakeCatalog) Channel(_ context.Context, id string) (ChannelRecord, error) {
	c, ok := f.channels[id]
	if !ok {
		return ChannelRecord{}, NotFoundError("channel", id)
	}
	return c, nil
}

type fakeTranscripts struct{ calls map[string]int }

func (f *fakeTranscripts) Fetch(_ context.Context, id string) []TranscriptEntry {
	f.calls[id]++
	if id == "vid2" {
		return SentinelTranscript()
	}
	return []TranscriptEntry{{Text: "hi from " + id, Start: 1.25, Duration: 2}}
}

type fakeDispatcher struct {
	sent []Message
	err  error
}

func (f *fakeDispatcher) Deliver(_ context.Context, m Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

func testResolve(raw string) (Target, bool) {
	switch {
	case strings.HasPrefix(raw, "video:"):
		return Target{Kind: TargetVideo, ID: strings.TrimPrefix(raw, "video:")}, true
	case strings.HasPrefix(raw, "playlist:"):
		return Target{Kind: TargetPlaylist, ID: strings.TrimPrefix(raw, "playlist:")}, true
	}
	return Target{}, false
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeCatalog, *fakeTranscripts) {
	t.Helper()
	cat := newFakeCatalog()
	tr := &fakeTranscripts{calls: map[string]int{}}
	p := &Pipeline{
		Config:      &Config{WorkspaceRoot: t.TempDir(), CacheBackend: store.BackendJSON},
		Resolve:     testResolve,
		Catalog:     cat,
		Transcripts: tr,
	}
	return p, cat, tr
}

// captureLogs routes slog output into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestPipelineInvalidURL(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.Run(context.Background(), Request{URL: "not a url", ArtifactOnly: true})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestPipelineVideoNotFound(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.Run(context.Background(), Request{URL: "video:nope", ArtifactOnly: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPipelineVideoWarmCache(t *testing.T) {
	ctx := context.Background()
	p, _, tr := newTestPipeline(t)

	first, err := p.Run(ctx, Request{URL: "video:vid1", ArtifactOnly: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Config.WorkspaceRoot, "my-chan", "first-video.txt"), first.ArtifactPath)
	assert.FileExists(t, filepath.Join(first.Workspace, "cache.json"))
	a1, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	_, err = p.Run(ctx, Request{URL: "video:vid1", ArtifactOnly: true})
	require.NoError(t, err)
	a2, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	assert.Equal(t, string(a1), string(a2))
	assert.Equal(t, 1, tr.calls["vid1"], "cached video must not be fetched again")
	assert.Contains(t, string(a1), "1.25: hi from vid1\n")
}

func TestPipelinePlaylistSkipsUnfetchable(t *testing.T) {
	ctx := context.Background()
	p, cat, tr := newTestPipeline(t)
	logs := captureLogs(t)

	res, err := p.Run(ctx, Request{URL: "playlist:PL1", ArtifactOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Videos)
	assert.Equal(t, 2, res.CachedVideos)
	assert.Equal(t, []string{"gone"}, res.Skipped)
	assert.Contains(t, logs.String(), "level=WARN msg=\"playlist: skipping video\" video=gone")

	data, err := os.ReadFile(res.ArtifactPath)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "PLAYLIST: Best Of\n\n"))
	assert.Contains(t, text, "VIDEO_ID: vid1\n")
	assert.Contains(t, text, "VIDEO_ID: vid2\n")
	assert.NotContains(t, text, "gone")
	assert.Contains(t, text, "TRANSCRIPT:\n\n"+SentinelTranscriptText+"\n")

	// Second run: cached videos skip metadata and transcripts, the missing one is retried.
	res2, err := p.Run(ctx, Request{URL: "playlist:PL1", ArtifactOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.videoCalls["vid1"])
	assert.Equal(t, 1, cat.videoCalls["vid2"])
	assert.Equal(t, 2, cat.videoCalls["gone"])
	assert.Equal(t, 1, tr.calls["vid1"])

	data2, err := os.ReadFile(res2.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, text, string(data2))
}

func TestPipelineSummaryAndDelivery(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)
	sum := &fakeSummarizer{out: "## Summary"}
	disp := &fakeDispatcher{}
	p.Summarizer, p.Dispatcher = sum, disp

	res, err := p.Run(ctx, Request{URL: "video:vid1", UseAPI: true, To: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "First Video", res.Subject)
	assert.True(t, res.Delivered)
	require.Len(t, disp.sent, 1)
	assert.Equal(t, Message{Subject: "First Video", Body: "## Summary", To: "a@b.c"}, disp.sent[0])
	assert.FileExists(t, filepath.Join(res.Workspace, "first-video.md"))

	_, err = p.Run(ctx, Request{URL: "video:vid1", UseAPI: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.calls)
}

func TestPipelineDeliveryFailureIsNotFatal(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.Summarizer = &fakeSummarizer{out: "text"}
	p.Dispatcher = &fakeDispatcher{err: errors.New("smtp down")}

	res, err := p.Run(context.Background(), Request{URL: "video:vid1", UseAPI: true, Subject: "Custom"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, "text", res.Summary)
}

func TestPipelineUnauthorizedIsFatal(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.Summarizer = &fakeSummarizer{err: ErrUnauthorized}

	res, err := p.Run(context.Background(), Request{URL: "video:vid1", UseAPI: true})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.FileExists(t, res.ArtifactPath, "the artifact is written before summarizing")
}

func TestPipelineWithoutAPICopiesToClipboard(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	clip := &fakeClipboard{}
	disp := &fakeDispatcher{}
	p.Clipboard, p.Dispatcher = clip, disp

	res, err := p.Run(context.Background(), Request{URL: "video:vid1"})
	require.NoError(t, err)
	assert.Empty(t, res.Summary)
	require.Len(t, clip.got, 1)
	assert.True(t, strings.HasPrefix(clip.got[0], "VIDEO_ID: vid1\n"))
	assert.Empty(t, disp.sent)
}

func TestPipelineCachedSummaryReachesRecipientWithoutAPI(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)
	p.Summarizer = &fakeSummarizer{out: "## Cached"}
	_, err := p.Run(ctx, Request{URL: "video:vid1", UseAPI: true})
	require.NoError(t, err)

	clip := &fakeClipboard{}
	disp := &fakeDispatcher{}
	p.Summarizer, p.Clipboard, p.Dispatcher = nil, clip, disp

	res, err := p.Run(ctx, Request{URL: "video:vid1", To: "reader@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Empty(t, clip.got, "a cached summary is not copied")
	require.Len(t, disp.sent, 1)
	assert.Equal(t, "reader@example.com", disp.sent[0].To)
	assert.Equal(t, "## Cached", disp.sent[0].Body)
}

func TestPipelineClipboardMessageOnlyOnCopy(t *testing.T) {
	ctx := context.Background()

	t.Run("copied", func(t *testing.T) {
		p, _, _ := newTestPipeline(t)
		p.Clipboard = &fakeClipboard{}
		logs := captureLogs(t)
		_, err := p.Run(ctx, Request{URL: "video:vid1"})
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "transcript copied to the clipboard")
	})

	t.Run("copy failed", func(t *testing.T) {
		p, _, _ := newTestPipeline(t)
		p.Clipboard = brokenClipboard{}
		logs := captureLogs(t)
		_, err := p.Run(ctx, Request{URL: "video:vid1"})
		require.NoError(t, err)
		assert.NotContains(t, logs.String(), "transcript copied to the clipboard")
		assert.Contains(t, logs.String(), "clipboard copy failed")
	})

	t.Run("cached summary", func(t *testing.T) {
		p, _, _ := newTestPipeline(t)
		p.Summarizer = &fakeSummarizer{out: "## Cached"}
		_, err := p.Run(ctx, Request{URL: "video:vid1", UseAPI: true})
		require.NoError(t, err)

		p.Summarizer, p.Clipboard = nil, &fakeClipboard{}
		logs := captureLogs(t)
		res, err := p.Run(ctx, Request{URL: "video:vid1"})
		require.NoError(t, err)
		assert.Equal(t, "## Cached", res.Summary)
		assert.NotContains(t, logs.String(), "transcript copied to the clipboard")
	})
}
