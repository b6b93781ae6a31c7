package engine

// SentinelTranscriptText marks a transcript that could not be fetched by any path.
// The artifact writer matches it exactly to suppress timestamps.
const SentinelTranscriptText = "Transcript unavailable for this video."

// VideoRecord is the metadata of a single video. JSON tags match cache files
// written by earlier versions of the tool.
type VideoRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PublishedAt  string `json:"publishedAt"`
	ChannelTitle string `json:"channelTitle"`
	ChannelID    string `json:"channelId"`
}

// PlaylistRecord is the metadata of a playlist.
type PlaylistRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
}

// ChannelRecord is the metadata of a channel.
type ChannelRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TranscriptEntry is one timed caption line. Start and Duration are seconds.
type TranscriptEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// CacheEntry is what the fetch cache stores per video id.
type CacheEntry struct {
	Info       VideoRecord       `json:"info"`
	Transcript []TranscriptEntry `json:"transcript"`
}

// SentinelTranscript returns the single-entry transcript used when every fetch path failed.
func SentinelTranscript() []TranscriptEntry {
	return []TranscriptEntry{{Text: SentinelTranscriptText, Start: 0, Duration: 0}}
}

// IsSentinel reports whether the transcript is the "unavailable" placeholder.
func IsSentinel(t []TranscriptEntry) bool {
	return len(t) > 0 && t[0].Text == SentinelTranscriptText
}

// TargetKind tells the pipeline whether a URL points at a video or a playlist.
type TargetKind int

const (
	TargetVideo TargetKind = iota + 1
	TargetPlaylist
)

// Target is the result of resolving a URL.
type Target struct {
	Kind TargetKind
	ID   string
}

func (t Target) String() string {
	switch t.Kind {
	case TargetVideo:
		return "video " + t.ID
	case TargetPlaylist:
		return "playlist " + t.ID
	}
	return "unknown"
}
