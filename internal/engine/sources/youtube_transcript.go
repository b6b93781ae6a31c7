package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"golang.org/x/net/html"
)

// YouTube transcript fetching.
// Primary:  watch page ytInitialPlayerResponse → caption track XML
// Fallback: /next → engagement panel → /get_transcript  (works from datacenter IPs)
// Fallback: ANDROID Innertube /player → captionTracks   (works from non-blocked IPs)
// Then the external command (youtube_fallback.go), then the sentinel.

// Transcripts implements engine.TranscriptFetcher.
type Transcripts struct {
	client   *Client
	langs    []string
	fallback *CommandFallback // nil disables the external command
}

// NewTranscripts returns a fetcher preferring langs. fb may be nil.
func NewTranscripts(c *Client, langs []string, fb *CommandFallback) *Transcripts {
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &Transcripts{client: c, langs: langs, fallback: fb}
}

// Fetch never fails: when every path is exhausted it returns the sentinel.
func (t *Transcripts) Fetch(ctx context.Context, videoID string) []engine.TranscriptEntry {
	entries, err := t.fetchInnertube(ctx, videoID)
	if err == nil {
		return entries
	}
	slog.Warn("youtube: transcript API failed, trying fallback command",
		slog.String("id", videoID), slog.Any("err", err))

	if t.fallback != nil {
		engine.IncrTranscriptFallback()
		entries, err := t.fallback.Fetch(ctx, videoID)
		if err == nil {
			slog.Info("youtube: transcript fetched by fallback command", slog.String("id", videoID))
			return entries
		}
		slog.Warn("youtube: fallback command failed", slog.String("id", videoID), slog.Any("err", err))
	}

	slog.Warn("youtube: transcript unavailable", slog.String("id", videoID))
	return engine.SentinelTranscript()
}

func (t *Transcripts) fetchInnertube(ctx context.Context, videoID string) ([]engine.TranscriptEntry, error) {
	entries, err := t.fetchViaPageScrape(ctx, videoID)
	if err == nil {
		return entries, nil
	}
	slog.Debug("youtube: page scrape failed, trying engagement panel",
		slog.String("id", videoID), slog.Any("err", err))

	if entries, err = t.fetchViaEngagementPanel(ctx, videoID); err == nil {
		return entries, nil
	}
	slog.Debug("youtube: engagement panel failed, trying player",
		slog.String("id", videoID), slog.Any("err", err))

	return t.fetchViaPlayer(ctx, videoID)
}

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next JSON response is URL-encoded.
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// parseTranscriptSegments converts a /get_transcript response into timed entries.
func parseTranscriptSegments(resp ytGetTranscriptResp) []engine.TranscriptEntry {
	var out []engine.TranscriptEntry
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range r.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			text := cleanCaption(sb.String())
			if text == "" {
				continue
			}
			start := msToSeconds(r.StartMs)
			out = append(out, engine.TranscriptEntry{
				Text:     text,
				Start:    start,
				Duration: max(msToSeconds(r.EndMs)-start, 0),
			})
		}
	}
	return out
}

func msToSeconds(ms string) float64 {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0
	}
	return float64(n) / 1000
}

// fetchViaEngagementPanel fetches a transcript via:
//  1. POST /next → get engagementPanels containing transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
//
// This approach works from datacenter IPs where /player returns LOGIN_REQUIRED.
func (t *Transcripts) fetchViaEngagementPanel(ctx context.Context, videoID string) ([]engine.TranscriptEntry, error) {
	visitorData := generateVisitorData()

	nextData, err := t.client.postInnerTubeWEB(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData),
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	transcriptData, err := t.client.postInnerTubeWEB(ctx, ytGetTranscriptPath, map[string]any{
		"params": token,
		"context": map[string]any{
			"client": ytWebClientCtx{
				ClientName:    "WEB",
				ClientVersion: ytWebVersion,
				VisitorData:   visitorData,
				Hl:            t.langs[0],
				Gl:            "US",
			},
		},
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var transcriptResp ytGetTranscriptResp
	if err := json.Unmarshal(transcriptData, &transcriptResp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	entries := parseTranscriptSegments(transcriptResp)
	if len(entries) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return entries, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken; those only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return tracks[0], false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// cleanCaption decodes entities (captions are often double-escaped) and drops markup.
func cleanCaption(s string) string {
	return engine.CleanHTML(html.UnescapeString(html.UnescapeString(s)))
}

// parseTimedText parses either timedtext XML format into entries.
func parseTimedText(body []byte) ([]engine.TranscriptEntry, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	var out []engine.TranscriptEntry
	for _, line := range tt.Lines {
		if text := cleanCaption(line.Text); text != "" {
			out = append(out, engine.TranscriptEntry{Text: text, Start: line.Start, Duration: line.Dur})
		}
	}
	for _, p := range tt.Paras {
		raw := p.Text
		if len(p.Segs) > 0 {
			var sb strings.Builder
			for _, s := range p.Segs {
				sb.WriteString(s.Text)
			}
			raw = sb.String()
		}
		if text := cleanCaption(raw); text != "" {
			out = append(out, engine.TranscriptEntry{
				Text:     text,
				Start:    float64(p.T) / 1000,
				Duration: float64(p.D) / 1000,
			})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("timedtext has no lines")
	}
	return out, nil
}

// fetchTimedText fetches and parses a YouTube timedtext caption URL.
func (t *Transcripts) fetchTimedText(ctx context.Context, baseURL string) ([]engine.TranscriptEntry, error) {
	body, err := t.client.get(ctx, baseURL, map[string]string{"User-Agent": engine.UserAgentBot}, 2*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	return parseTimedText(body)
}

// fetchFromTracks picks a caption track and downloads it.
func (t *Transcripts) fetchFromTracks(ctx context.Context, pr innertubePlayerResp) ([]engine.TranscriptEntry, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", pr.PlayabilityStatus.Reason)
		}
		return nil, errors.New("no captions in player response")
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, t.langs)
	if !ok {
		return nil, errors.New("all caption tracks require PoToken")
	}
	return t.fetchTimedText(ctx, track.BaseURL)
}

// fetchViaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func (t *Transcripts) fetchViaPlayer(ctx context.Context, videoID string) ([]engine.TranscriptEntry, error) {
	data, err := t.client.postInnerTubeAndroid(ctx, ytPlayerPath, innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(data, &playerResp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return t.fetchFromTracks(ctx, playerResp)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchWatchPage downloads the watch page HTML of a video.
func (c *Client) fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	body, err := c.get(ctx, c.webURL("/watch?v="+url.QueryEscape(videoID)), browserHeaders(), 6*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	return body, nil
}

// parsePlayerResponse extracts ytInitialPlayerResponse from watch page HTML.
func parsePlayerResponse(page []byte) (innertubePlayerResp, error) {
	var pr innertubePlayerResp
	idx := strings.Index(string(page), ytInitialPlayerResponseMarker)
	if idx < 0 {
		return pr, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(page[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return pr, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return pr, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr, nil
}

// fetchViaPageScrape reads the caption track list from the watch page. Works from any IP.
func (t *Transcripts) fetchViaPageScrape(ctx context.Context, videoID string) ([]engine.TranscriptEntry, error) {
	page, err := t.client.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	pr, err := parsePlayerResponse(page)
	if err != nil {
		return nil, err
	}
	return t.fetchFromTracks(ctx, pr)
}
