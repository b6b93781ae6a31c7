package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Keyless metadata: watch and channel pages are read with goquery, playlists
// through the public RSS feed (which only lists the newest 15 entries).

// Scraper is a metadata client that needs no API key.
type Scraper struct {
	client *Client
	feeds  *gofeed.Parser
}

// NewScraper returns a Scraper using c.
func NewScraper(c *Client) *Scraper {
	return &Scraper{client: c, feeds: gofeed.NewParser()}
}

// metaContent returns the first non-empty content attribute among selectors.
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Video reads title, description, channel and publish date from the watch page.
// ytInitialPlayerResponse is preferred; meta tags fill what it lacks.
func (s *Scraper) Video(ctx context.Context, id string) (engine.VideoRecord, error) {
	page, err := s.client.fetchWatchPage(ctx, id)
	if err != nil {
		return engine.VideoRecord{}, err
	}
	rec := engine.VideoRecord{ID: id}
	if pr, err := parsePlayerResponse(page); err == nil {
		if d := pr.VideoDetails; d != nil {
			rec.Title, rec.Description = d.Title, d.ShortDescription
			rec.ChannelTitle, rec.ChannelID = d.Author, d.ChannelID
		}
		if m := pr.Microformat; m != nil {
			rec.PublishedAt = m.PlayerMicroformatRenderer.PublishDate
			if rec.ChannelID == "" {
				rec.ChannelID = m.PlayerMicroformatRenderer.ExternalChannelID
			}
			if rec.ChannelTitle == "" {
				rec.ChannelTitle = m.PlayerMicroformatRenderer.OwnerChannelName
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return engine.VideoRecord{}, fmt.Errorf("parse watch page: %w", err)
	}
	if rec.Title == "" {
		rec.Title = metaContent(doc, `meta[name="title"]`, `meta[property="og:title"]`)
	}
	if rec.Description == "" {
		rec.Description = metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
	}
	if rec.PublishedAt == "" {
		rec.PublishedAt = metaContent(doc, `meta[itemprop="datePublished"]`, `meta[itemprop="uploadDate"]`)
	}
	if rec.ChannelID == "" {
		rec.ChannelID = metaContent(doc, `meta[itemprop="channelId"]`)
	}
	if rec.ChannelTitle == "" {
		rec.ChannelTitle = metaContent(doc, `span[itemprop="author"] link[itemprop="name"]`)
	}

	if rec.Title == "" || rec.ChannelID == "" {
		return engine.VideoRecord{}, engine.NotFoundError("video", id)
	}
	return rec, nil
}

// Channel reads the channel title from its page.
func (s *Scraper) Channel(ctx context.Context, id string) (engine.ChannelRecord, error) {
	page, err := s.client.get(ctx, s.client.webURL("/channel/"+url.PathEscape(id)), browserHeaders(), 4*1024*1024)
	if err != nil {
		return engine.ChannelRecord{}, fmt.Errorf("channel page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return engine.ChannelRecord{}, fmt.Errorf("parse channel page: %w", err)
	}
	title := metaContent(doc, `meta[property="og:title"]`, `meta[name="title"]`)
	if title == "" {
		title = strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
	}
	if title == "" {
		return engine.ChannelRecord{}, engine.NotFoundError("channel", id)
	}
	return engine.ChannelRecord{ID: id, Title: title}, nil
}

func (s *Scraper) playlistFeed(ctx context.Context, id string) (*gofeed.Feed, error) {
	body, err := s.client.get(ctx, s.client.webURL("/feeds/videos.xml?playlist_id="+url.QueryEscape(id)),
		map[string]string{"User-Agent": engine.UserAgentBot}, 2*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("playlist feed: %w", err)
	}
	feed, err := s.feeds.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse playlist feed: %w", err)
	}
	return feed, nil
}

// ytExt returns the first value of a yt: namespaced element.
func ytExt(e ext.Extensions, name string) string {
	if vals := e["yt"][name]; len(vals) > 0 {
		return strings.TrimSpace(vals[0].Value)
	}
	return ""
}

// Playlist reads title and channel from the playlist feed.
func (s *Scraper) Playlist(ctx context.Context, id string) (engine.PlaylistRecord, error) {
	feed, err := s.playlistFeed(ctx, id)
	if err != nil {
		return engine.PlaylistRecord{}, err
	}
	rec := engine.PlaylistRecord{
		ID:          id,
		Title:       feed.Title,
		Description: feed.Description,
		ChannelID:   ytExt(feed.Extensions, "channelId"),
	}
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		rec.ChannelTitle = feed.Authors[0].Name
	}
	if rec.Title == "" || rec.ChannelID == "" {
		return engine.PlaylistRecord{}, engine.NotFoundError("playlist", id)
	}
	return rec, nil
}

// PlaylistVideoIDs lists the video ids in the playlist feed.
func (s *Scraper) PlaylistVideoIDs(ctx context.Context, id string) ([]string, error) {
	feed, err := s.playlistFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		vid := ytExt(item.Extensions, "videoId")
		if vid == "" {
			if t, ok := Resolve(item.Link); ok && t.Kind == engine.TargetVideo {
				vid = t.ID
			}
		}
		if vid != "" {
			ids = append(ids, vid)
		}
	}
	return ids, nil
}
