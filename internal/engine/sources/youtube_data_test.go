package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// fakeDataAPI serves a tiny slice of the Data API. Requests with key "bad"
// get 403 quotaExceeded.
type fakeDataAPI struct {
	keys  []string
	pages int
}

func (f *fakeDataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.keys = append(f.keys, q.Get("key"))
	if q.Get("key") == "bad" {
		http.Error(w, `{"error":{"code":403,"errors":[{"reason":"quotaExceeded"}]}}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/videos":
		if q.Get("id") != "vid1" {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":"vid1","snippet":{"title":"First","description":"d","publishedAt":"2024-01-01T00:00:00Z","channelId":"UC1","channelTitle":"Chan"}}]}`)
	case "/playlists":
		fmt.Fprint(w, `{"items":[{"id":"PL1","snippet":{"title":"List","description":"","channelId":"UC1","channelTitle":"Chan"}}]}`)
	case "/channels":
		fmt.Fprint(w, `{"items":[{"id":"UC1","snippet":{"title":"Chan"}}]}`)
	case "/playlistItems":
		f.pages++
		if q.Get("maxResults") != "50" {
			http.Error(w, "bad maxResults", http.StatusBadRequest)
			return
		}
		if q.Get("pageToken") == "" {
			fmt.Fprint(w, `{"nextPageToken":"p2","items":[{"contentDetails":{"videoId":"a"}},{"contentDetails":{"videoId":"b"}}]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"contentDetails":{"videoId":"c"}}]}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestDataAPI(srv *httptest.Server, keys ...string) *DataAPI {
	cfg := &engine.Config{YouTubeAPIKey: keys[0], YouTubeAPIBase: srv.URL}
	if len(keys) > 1 {
		cfg.YouTubeAPIKeyFallback = keys[1]
	}
	return NewDataAPI(testClient(srv), cfg)
}

func TestDataAPIVideo(t *testing.T) {
	fake := &fakeDataAPI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	api := newTestDataAPI(srv, "good")

	v, err := api.Video(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	want := engine.VideoRecord{ID: "vid1", Title: "First", Description: "d", PublishedAt: "2024-01-01T00:00:00Z", ChannelTitle: "Chan", ChannelID: "UC1"}
	if v != want {
		t.Errorf("Video = %+v, want %+v", v, want)
	}

	_, err = api.Video(context.Background(), "missing")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("missing video err = %v, want ErrNotFound", err)
	}
}

func TestDataAPIKeyFallback(t *testing.T) {
	fake := &fakeDataAPI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	api := newTestDataAPI(srv, "bad", "good")

	ch, err := api.Channel(context.Background(), "UC1")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if ch.Title != "Chan" {
		t.Errorf("Channel title = %q", ch.Title)
	}
	if strings.Join(fake.keys, ",") != "bad,good" {
		t.Errorf("keys tried = %v", fake.keys)
	}
}

func TestDataAPIAllKeysFail(t *testing.T) {
	srv := httptest.NewServer(&fakeDataAPI{})
	defer srv.Close()
	api := newTestDataAPI(srv, "bad")

	_, err := api.Playlist(context.Background(), "PL1")
	if err == nil || errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("err = %v, want a quota error", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want HTTP status in message", err)
	}
}

func TestDataAPIPlaylistVideoIDsPaginates(t *testing.T) {
	fake := &fakeDataAPI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	api := newTestDataAPI(srv, "good")

	ids, err := api.PlaylistVideoIDs(context.Background(), "PL1")
	if err != nil {
		t.Fatalf("PlaylistVideoIDs: %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("ids = %v", ids)
	}
	if fake.pages != 2 {
		t.Errorf("pages fetched = %d, want 2", fake.pages)
	}
}

func TestCatalogFallsBackToScraper(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", &fakeDataAPI{}))
	mux.HandleFunc("/watch", watchPageHandler(func() string { return srv.URL }))
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv)
	cat := &Catalog{
		API:    NewDataAPI(c, &engine.Config{YouTubeAPIKey: "bad", YouTubeAPIBase: srv.URL + "/api"}),
		Scrape: NewScraper(c),
	}
	v, err := cat.Video(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if v.Title != "Scraped {Title}" || v.ChannelID != "UC9" || v.PublishedAt != "2023-05-06" {
		t.Errorf("Video = %+v", v)
	}
}

func TestCatalogNotFoundIsFinal(t *testing.T) {
	srv := httptest.NewServer(&fakeDataAPI{})
	defer srv.Close()

	c := testClient(srv)
	cat := &Catalog{
		API:    NewDataAPI(c, &engine.Config{YouTubeAPIKey: "good", YouTubeAPIBase: srv.URL}),
		Scrape: NewScraper(c),
	}
	_, err := cat.Video(context.Background(), "missing")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
