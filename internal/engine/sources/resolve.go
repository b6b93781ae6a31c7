package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

var ytIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// videoPathPrefixes are path forms that carry the video id as the next segment.
var videoPathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/", "/e/"}

func canonicalHost(h string) string {
	h = strings.ToLower(h)
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	for _, p := range []string{"www.", "m.", "music."} {
		h = strings.TrimPrefix(h, p)
	}
	return h
}

func validID(id string) (string, bool) {
	return id, id != "" && ytIDRE.MatchString(id)
}

// Resolve maps a YouTube URL to a video or playlist target. Watch URLs that
// carry both v and list resolve to the video.
func Resolve(rawURL string) (engine.Target, bool) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return engine.Target{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return engine.Target{}, false
	}
	q := u.Query()

	switch canonicalHost(u.Host) {
	case "youtu.be":
		seg, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if id, ok := validID(seg); ok {
			return engine.Target{Kind: engine.TargetVideo, ID: id}, true
		}
		return engine.Target{}, false
	case "youtube.com", "youtube-nocookie.com":
	default:
		return engine.Target{}, false
	}

	if id, ok := validID(q.Get("v")); ok && (u.Path == "/watch" || u.Path == "/watch/") {
		return engine.Target{Kind: engine.TargetVideo, ID: id}, true
	}
	for _, prefix := range videoPathPrefixes {
		if rest, found := strings.CutPrefix(u.Path, prefix); found {
			seg, _, _ := strings.Cut(rest, "/")
			if id, ok := validID(seg); ok && seg != "videoseries" {
				return engine.Target{Kind: engine.TargetVideo, ID: id}, true
			}
		}
	}
	if id, ok := validID(q.Get("list")); ok {
		return engine.Target{Kind: engine.TargetPlaylist, ID: id}, true
	}
	return engine.Target{}, false
}
