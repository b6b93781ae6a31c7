package ytserver

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) Video(_ context.Context, id string) (engine.VideoRecord, error) {
	if id != "vid1" {
		return engine.VideoRecord{}, engine.NotFoundError("video", id)
	}
	return engine.VideoRecord{ID: "vid1", Title: "Launch Talk", ChannelID: "UC1", ChannelTitle: "Lab", PublishedAt: "2024-03-01T00:00:00Z"}, nil
}

func (stubCatalog) Playlist(_ context.Context, id string) (engine.PlaylistRecord, error) {
	return engine.PlaylistRecord{}, engine.NotFoundError("playlist", id)
}

func (stubCatalog) PlaylistVideoIDs(context.Context, string) ([]string, error) { return nil, nil }

func (stubCatalog) Channel(_ context.Context, id string) (engine.ChannelRecord, error) {
	return engine.ChannelRecord{ID: id, Title: "Lab"}, nil
}

type stubTranscripts struct{}

func (stubTranscripts) Fetch(context.Context, string) []engine.TranscriptEntry {
	return []engine.TranscriptEntry{{Text: "welcome", Start: 0, Duration: 1}}
}

type stubSummarizer struct{ calls int }

func (s *stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	s.calls++
	return "## Launch Talk\n\n- point", nil
}

type recordingDispatcher struct{ n int }

func (d *recordingDispatcher) Deliver(context.Context, engine.Message) error {
	d.n++
	return nil
}

func resolve(u string) (engine.Target, bool) {
	if id, ok := strings.CutPrefix(u, "video:"); ok {
		return engine.Target{Kind: engine.TargetVideo, ID: id}, true
	}
	return engine.Target{}, false
}

func newServer(t *testing.T, sum engine.Summarizer) (*Server, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	p := &engine.Pipeline{
		Config:      &engine.Config{WorkspaceRoot: t.TempDir(), CacheBackend: "json"},
		Resolve:     resolve,
		Catalog:     stubCatalog{},
		Transcripts: stubTranscripts{},
		Summarizer:  sum,
		Dispatcher:  d,
	}
	return &Server{p: p}, d
}

func TestTranscriptReturnsArtifact(t *testing.T) {
	s, d := newServer(t, nil)
	out, err := s.Transcript(context.Background(), TranscriptInput{URL: " video:vid1 "})
	require.NoError(t, err)

	assert.Equal(t, "video vid1", out.Target)
	assert.Equal(t, 1, out.Videos)
	assert.Equal(t, 1, out.CachedVideos)
	assert.False(t, out.Truncated)
	assert.Contains(t, out.Text, "TITLE: Launch Talk")
	assert.Contains(t, out.Text, "0.00: welcome")

	data, err := os.ReadFile(out.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, string(data), out.Text)
	assert.Zero(t, d.n, "tools never deliver")
}

func TestTranscriptRejectsBadInput(t *testing.T) {
	s, _ := newServer(t, nil)
	_, err := s.Transcript(context.Background(), TranscriptInput{URL: "  "})
	assert.ErrorContains(t, err, "url is required")

	_, err = s.Transcript(context.Background(), TranscriptInput{URL: "https://example.com"})
	assert.True(t, errors.Is(err, engine.ErrInvalidURL))
}

func TestSummaryCachesAndSkipsDelivery(t *testing.T) {
	sum := &stubSummarizer{}
	s, d := newServer(t, sum)
	ctx := context.Background()

	out, err := s.Summary(ctx, SummaryInput{URL: "video:vid1"})
	require.NoError(t, err)
	assert.Equal(t, "Launch Talk", out.Subject)
	assert.Contains(t, out.Summary, "## Launch Talk")
	assert.FileExists(t, out.SummaryPath)

	again, err := s.Summary(ctx, SummaryInput{URL: "video:vid1"})
	require.NoError(t, err)
	assert.Equal(t, out.Summary, again.Summary)
	assert.Equal(t, 1, sum.calls)
	assert.Zero(t, d.n)
}

func TestSummaryNeedsSummarizer(t *testing.T) {
	s, _ := newServer(t, nil)
	_, err := s.Summary(context.Background(), SummaryInput{URL: "video:vid1"})
	assert.ErrorContains(t, err, engine.KeyLLMAPIKey)
}
