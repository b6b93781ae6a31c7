package sources

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// Catalog implements engine.Catalog: the Data API answers first, and the
// keyless scraper is tried when the API call itself fails (quota, network,
// bad key). A not-found answer from the API is final.
type Catalog struct {
	API    *DataAPI
	Scrape *Scraper // nil disables the fallback
}

// NewCatalog wires the Data API with the scraping fallback.
func NewCatalog(c *Client, cfg *engine.Config) *Catalog {
	return &Catalog{API: NewDataAPI(c, cfg), Scrape: NewScraper(c)}
}

func (c *Catalog) useFallback(ctx context.Context, kind, id string, err error) bool {
	if c.Scrape == nil || errors.Is(err, engine.ErrNotFound) || ctx.Err() != nil {
		return false
	}
	engine.IncrMetadataFallback()
	slog.Warn("youtube: data API failed, scraping instead",
		slog.String("kind", kind), slog.String("id", id), slog.Any("err", err))
	return true
}

func (c *Catalog) Video(ctx context.Context, id string) (engine.VideoRecord, error) {
	v, err := c.API.Video(ctx, id)
	if err != nil && c.useFallback(ctx, "video", id, err) {
		return c.Scrape.Video(ctx, id)
	}
	return v, err
}

func (c *Catalog) Playlist(ctx context.Context, id string) (engine.PlaylistRecord, error) {
	p, err := c.API.Playlist(ctx, id)
	if err != nil && c.useFallback(ctx, "playlist", id, err) {
		return c.Scrape.Playlist(ctx, id)
	}
	return p, err
}

func (c *Catalog) PlaylistVideoIDs(ctx context.Context, id string) ([]string, error) {
	ids, err := c.API.PlaylistVideoIDs(ctx, id)
	if err != nil && c.useFallback(ctx, "playlistItems", id, err) {
		return c.Scrape.PlaylistVideoIDs(ctx, id)
	}
	return ids, err
}

func (c *Catalog) Channel(ctx context.Context, id string) (engine.ChannelRecord, error) {
	ch, err := c.API.Channel(ctx, id)
	if err != nil && c.useFallback(ctx, "channel", id, err) {
		return c.Scrape.Channel(ctx, id)
	}
	return ch, err
}
