package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"golang.org/x/time/rate"
)

// YouTube Data API v3: videos, playlists, channels and playlistItems.
// Every call passes through a shared rate limiter to protect the daily quota.

const ytPlaylistPageSize = 50

// DataAPI is a metadata client for the YouTube Data API v3.
type DataAPI struct {
	client  *Client
	base    string
	keys    []string
	limiter *rate.Limiter
}

// NewDataAPI uses cfg's API base, keys (primary, then fallback) and request rate.
func NewDataAPI(c *Client, cfg *engine.Config) *DataAPI {
	keys := []string{cfg.YouTubeAPIKey}
	if cfg.YouTubeAPIKeyFallback != "" {
		keys = append(keys, cfg.YouTubeAPIKeyFallback)
	}
	limit := rate.Inf
	if cfg.YouTubeAPIRPS > 0 {
		limit = rate.Limit(cfg.YouTubeAPIRPS)
	}
	return &DataAPI{client: c, base: cfg.YouTubeAPIBase, keys: keys, limiter: rate.NewLimiter(limit, 1)}
}

// --- response types ---

type ytVideoSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PublishedAt  string `json:"publishedAt"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
}

type ytListResp[S any] struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet S      `json:"snippet"`
	} `json:"items"`
}

type ytPlaylistItemsResp struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// call performs GET <base>/<endpoint>?params&key=… and decodes the JSON body
// into out. Keys are tried in order; the fallback key is used when the
// primary one fails (typically quota exhaustion).
func (d *DataAPI) call(ctx context.Context, endpoint string, params url.Values, out any) error {
	var lastErr error
	for i, key := range d.keys {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("key", key)

		body, err := d.client.get(ctx, d.base+"/"+endpoint+"?"+q.Encode(),
			map[string]string{"User-Agent": engine.UserAgentBot, "Accept": "application/json"}, 4*1024*1024)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode youtube data API %s: %w", endpoint, err)
			}
			return nil
		}
		lastErr = fmt.Errorf("youtube data API %s: %w", endpoint, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i+1 < len(d.keys) {
			slog.Debug("youtube data API key failed, trying fallback", slog.String("endpoint", endpoint), slog.Any("err", err))
		}
	}
	return lastErr
}

// Video returns the snippet of one video.
func (d *DataAPI) Video(ctx context.Context, id string) (engine.VideoRecord, error) {
	var resp ytListResp[ytVideoSnippet]
	if err := d.call(ctx, "videos", url.Values{"part": {"snippet"}, "id": {id}}, &resp); err != nil {
		return engine.VideoRecord{}, err
	}
	if len(resp.Items) == 0 {
		return engine.VideoRecord{}, engine.NotFoundError("video", id)
	}
	s := resp.Items[0].Snippet
	return engine.VideoRecord{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		PublishedAt:  s.PublishedAt,
		ChannelTitle: s.ChannelTitle,
		ChannelID:    s.ChannelID,
	}, nil
}

// Playlist returns the snippet of one playlist.
func (d *DataAPI) Playlist(ctx context.Context, id string) (engine.PlaylistRecord, error) {
	var resp ytListResp[ytVideoSnippet]
	if err := d.call(ctx, "playlists", url.Values{"part": {"snippet"}, "id": {id}}, &resp); err != nil {
		return engine.PlaylistRecord{}, err
	}
	if len(resp.Items) == 0 {
		return engine.PlaylistRecord{}, engine.NotFoundError("playlist", id)
	}
	s := resp.Items[0].Snippet
	return engine.PlaylistRecord{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelID,
		ChannelTitle: s.ChannelTitle,
	}, nil
}

// Channel returns the title of one channel.
func (d *DataAPI) Channel(ctx context.Context, id string) (engine.ChannelRecord, error) {
	var resp ytListResp[ytVideoSnippet]
	if err := d.call(ctx, "channels", url.Values{"part": {"snippet"}, "id": {id}}, &resp); err != nil {
		return engine.ChannelRecord{}, err
	}
	if len(resp.Items) == 0 {
		return engine.ChannelRecord{}, engine.NotFoundError("channel", id)
	}
	return engine.ChannelRecord{ID: id, Title: resp.Items[0].Snippet.Title}, nil
}

// PlaylistVideoIDs pages through playlistItems in playlist order.
func (d *DataAPI) PlaylistVideoIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {id},
			"maxResults": {strconv.Itoa(ytPlaylistPageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var resp ytPlaylistItemsResp
		if err := d.call(ctx, "playlistItems", params, &resp); err != nil {
			var se *statusError
			if errors.As(err, &se) && se.Code == 404 {
				return nil, engine.NotFoundError("playlist", id)
			}
			return nil, err
		}
		for _, item := range resp.Items {
			if item.ContentDetails.VideoID != "" {
				ids = append(ids, item.ContentDetails.VideoID)
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}
