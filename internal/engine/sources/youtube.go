package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// YouTube implementation is split across files by responsibility:
//   youtube.go           : shared HTTP client
//   youtube_data.go      : Data API v3 catalog (videos, playlists, channels, playlistItems)
//   youtube_scrape.go    : watch page / channel page / playlist RSS metadata fallbacks
//   youtube_catalog.go   : Data API first, scraping on failure
//   youtube_innertube.go : Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go: timed transcript chain (watch page → engagement panel → ANDROID player)
//   youtube_fallback.go  : external command fallback and the sentinel
//   resolve.go           : URL → video or playlist id

const defaultWebBase = "https://www.youtube.com"

// Client holds the HTTP plumbing shared by every YouTube call.
type Client struct {
	HTTP    *http.Client
	Retry   stealth.RetryConfig
	WebBase string // https://www.youtube.com unless overridden
}

// NewClient builds a Client from cfg.
func NewClient(cfg *engine.Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &Client{HTTP: hc, Retry: engine.RetryConfigFor(cfg), WebBase: defaultWebBase}
}

func (c *Client) webURL(path string) string {
	base := c.WebBase
	if base == "" {
		base = defaultWebBase
	}
	return base + path
}

// get fetches url and returns at most limit bytes of a 200 response.
func (c *Client) get(ctx context.Context, url string, headers map[string]string, limit int64) ([]byte, error) {
	resp, err := engine.RetryHTTP(ctx, c.Retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return c.HTTP.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// browserHeaders mimics a desktop browser for HTML endpoints.
func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      engine.RandomUserAgent(),
		"Accept-Language": "en-US,en;q=0.9",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// WatchURL is the canonical watch page of a video.
func WatchURL(videoID string) string {
	return defaultWebBase + "/watch?v=" + videoID
}
