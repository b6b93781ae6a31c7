package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anatolykoptev/go_ytsaver/internal/engine/store"
)

// Catalog is the remote metadata service. Empty results are ErrNotFound.
type Catalog interface {
	Video(ctx context.Context, id string) (VideoRecord, error)
	Playlist(ctx context.Context, id string) (PlaylistRecord, error)
	PlaylistVideoIDs(ctx context.Context, id string) ([]string, error)
	Channel(ctx context.Context, id string) (ChannelRecord, error)
}

// TranscriptFetcher returns the timed transcript of a video. It never fails:
// when nothing can be fetched it returns SentinelTranscript().
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) []TranscriptEntry
}

// Message is one deliverable.
type Message struct {
	Subject string
	Body    string // markdown
	To      string
}

// Dispatcher delivers a finished summary.
type Dispatcher interface {
	Deliver(ctx context.Context, m Message) error
}

// Resolver maps a URL to a video or playlist target.
type Resolver func(rawURL string) (Target, bool)

// Request is one pipeline invocation.
type Request struct {
	URL     string
	Subject string // defaults to the video or playlist title
	To      string
	UseAPI  bool
	// ArtifactOnly stops after the artifact is written: no summary, no delivery.
	ArtifactOnly bool
}

// Result describes what a run produced.
type Result struct {
	Target       Target
	Title        string
	Workspace    string
	ArtifactPath string
	Videos       int
	Skipped      []string
	CachedVideos int // entries in the channel cache after this run
	Subject      string
	Summary      string
	Delivered    bool
}

// Pipeline wires the collaborators of one run. Catalog, Transcripts and
// Resolve are required; the rest may be nil when the run does not need them.
type Pipeline struct {
	Config      *Config
	Resolve     Resolver
	Catalog     Catalog
	Transcripts TranscriptFetcher
	Summarizer  Summarizer
	Clipboard   Clipboard
	Dispatcher  Dispatcher

	// OpenStore overrides backend selection (tests).
	OpenStore func(ctx context.Context, dir, namespace string) (store.Store, error)
}

// Run resolves the URL, fills the channel's fetch cache, writes the artifact,
// then summarizes and delivers unless req.ArtifactOnly is set.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result, err error) {
	err = TrackOperation(ctx, "pipeline", func(ctx context.Context) error {
		res, err = p.run(ctx, req)
		return err
	})
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, error) {
	target, ok := p.Resolve(req.URL)
	if !ok {
		return Result{}, ErrInvalidURL
	}
	res := Result{Target: target}
	slog.Info("pipeline: resolved", slog.String("target", target.String()))

	var (
		video     VideoRecord
		playlist  PlaylistRecord
		channelID string
		err       error
	)
	switch target.Kind {
	case TargetVideo:
		IncrMetadataRequest()
		if video, err = p.Catalog.Video(ctx, target.ID); err != nil {
			return res, fmt.Errorf("video metadata: %w", err)
		}
		res.Title, channelID = video.Title, video.ChannelID
	case TargetPlaylist:
		IncrMetadataRequest()
		if playlist, err = p.Catalog.Playlist(ctx, target.ID); err != nil {
			return res, fmt.Errorf("playlist metadata: %w", err)
		}
		res.Title, channelID = playlist.Title, playlist.ChannelID
	default:
		return res, ErrInvalidURL
	}

	IncrMetadataRequest()
	channel, err := p.Catalog.Channel(ctx, channelID)
	if err != nil {
		return res, fmt.Errorf("channel metadata: %w", err)
	}
	slug := Slugify(channel.Title)
	res.Workspace = filepath.Join(p.Config.WorkspaceRoot, slug)
	if err := os.MkdirAll(res.Workspace, 0o755); err != nil {
		return res, fmt.Errorf("workspace: %w", err)
	}

	st, err := p.openStore(ctx, res.Workspace, slug)
	if err != nil {
		return res, fmt.Errorf("open cache: %w", err)
	}
	cache := NewFetchCache(st)
	defer func() {
		if err := cache.Save(context.WithoutCancel(ctx)); err != nil {
			slog.Error("cache: save failed", slog.String("workspace", res.Workspace), slog.Any("error", err))
		}
		if err := cache.Close(); err != nil {
			slog.Debug("cache: close", slog.Any("error", err))
		}
	}()

	if target.Kind == TargetVideo {
		err = p.writeVideo(ctx, cache, video, &res)
	} else {
		err = p.writePlaylist(ctx, cache, playlist, &res)
	}
	if err != nil {
		return res, err
	}
	if n, err := cache.Len(ctx); err == nil {
		res.CachedVideos = n
	} else {
		slog.Debug("cache: len", slog.Any("error", err))
	}
	slog.Info("pipeline: artifact written",
		slog.String("path", res.ArtifactPath),
		slog.Int("videos", res.Videos),
		slog.Int("cached", res.CachedVideos),
	)

	if req.ArtifactOnly {
		return res, nil
	}

	res.Subject = req.Subject
	if res.Subject == "" {
		res.Subject = res.Title
	}
	sc := &SummaryCache{Dir: res.Workspace, Prompt: p.Config.Prompt, Summarizer: p.Summarizer, Clipboard: p.Clipboard}
	res.Summary, err = sc.GetOrSummarize(ctx, res.Subject, res.ArtifactPath, req.UseAPI)
	if err != nil {
		return res, err
	}
	if res.Summary == "" || p.Dispatcher == nil {
		return res, nil
	}

	if err := p.Dispatcher.Deliver(ctx, Message{Subject: res.Subject, Body: res.Summary, To: req.To}); err != nil {
		slog.Warn("delivery failed", slog.String("subject", res.Subject), slog.Any("error", err))
		return res, nil
	}
	res.Delivered = true
	return res, nil
}

func (p *Pipeline) openStore(ctx context.Context, dir, namespace string) (store.Store, error) {
	if p.OpenStore != nil {
		return p.OpenStore(ctx, dir, namespace)
	}
	return store.Open(ctx, store.Config{Backend: p.Config.CacheBackend, URL: p.Config.CacheURL}, dir, namespace)
}

// writeVideo reuses the metadata fetched to locate the workspace, so a cache
// miss only costs the transcript.
func (p *Pipeline) writeVideo(ctx context.Context, cache *FetchCache, info VideoRecord, res *Result) error {
	entry, err := cache.GetOrFetch(ctx, info.ID, func(ctx context.Context, id string) (CacheEntry, error) {
		return CacheEntry{Info: info, Transcript: p.fetchTranscript(ctx, id)}, nil
	})
	if err != nil {
		return err
	}

	res.ArtifactPath = ArtifactPath(res.Workspace, info.Title)
	f, err := createArtifact(res.ArtifactPath)
	if err != nil {
		return err
	}
	if err := WriteVideoBlock(f, entry); err != nil {
		f.Close()
		return fmt.Errorf("artifact: %w", err)
	}
	res.Videos = 1
	return f.Close()
}

// writePlaylist streams one block per video. Videos whose metadata cannot be
// fetched are skipped and left out of the cache.
func (p *Pipeline) writePlaylist(ctx context.Context, cache *FetchCache, pl PlaylistRecord, res *Result) error {
	ids, err := p.Catalog.PlaylistVideoIDs(ctx, pl.ID)
	if err != nil {
		return fmt.Errorf("playlist items: %w", err)
	}

	res.ArtifactPath = ArtifactPath(res.Workspace, pl.Title)
	f, err := createArtifact(res.ArtifactPath)
	if err != nil {
		return err
	}
	if err := p.streamPlaylist(ctx, cache, f, pl.Title, ids, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Pipeline) streamPlaylist(ctx context.Context, cache *FetchCache, w io.Writer, title string, ids []string, res *Result) error {
	pw, err := NewPlaylistWriter(w, title)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		var metaErr error
		entry, err := cache.GetOrFetch(ctx, id, func(ctx context.Context, id string) (CacheEntry, error) {
			IncrMetadataRequest()
			info, err := p.Catalog.Video(ctx, id)
			if err != nil {
				metaErr = err
				return CacheEntry{}, err
			}
			return CacheEntry{Info: info, Transcript: p.fetchTranscript(ctx, id)}, nil
		})
		if metaErr != nil {
			slog.Warn("playlist: skipping video", slog.String("video", id), slog.Any("error", metaErr))
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if err != nil {
			return err
		}
		if err := pw.Add(entry); err != nil {
			return fmt.Errorf("artifact: %w", err)
		}
		res.Videos++
	}
	return nil
}

func (p *Pipeline) fetchTranscript(ctx context.Context, id string) []TranscriptEntry {
	IncrTranscriptRequest()
	t := p.Transcripts.Fetch(ctx, id)
	if len(t) == 0 {
		t = SentinelTranscript()
	}
	if IsSentinel(t) {
		IncrTranscriptSentinel()
	}
	return t
}

