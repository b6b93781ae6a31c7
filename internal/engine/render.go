package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// videoSeparator follows every video block in a playlist artifact.
var videoSeparator = "\n" + strings.Repeat("=", 50) + "\n\n"

// WriteVideoBlock writes the header and transcript of one video.
func WriteVideoBlock(w io.Writer, e CacheEntry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "VIDEO_ID: %s\n", e.Info.ID)
	fmt.Fprintf(bw, "TITLE: %s\n", e.Info.Title)
	fmt.Fprintf(bw, "CHANNEL: %s\n", e.Info.ChannelTitle)
	fmt.Fprintf(bw, "PUBLISHED AT: %s\n", e.Info.PublishedAt)
	fmt.Fprintf(bw, "DESCRIPTION: %s\n\n", e.Info.Description)
	bw.WriteString("TRANSCRIPT:\n\n")

	t := e.Transcript
	if len(t) == 0 {
		t = SentinelTranscript()
	}
	if IsSentinel(t) {
		bw.WriteString(t[0].Text + "\n")
		return bw.Flush()
	}
	for _, entry := range t {
		fmt.Fprintf(bw, "%.2f: %s\n", entry.Start, strings.ReplaceAll(entry.Text, "\n", " "))
	}
	return bw.Flush()
}

// PlaylistWriter streams a playlist artifact one video at a time.
type PlaylistWriter struct {
	w io.Writer
}

// NewPlaylistWriter writes the playlist header to w.
func NewPlaylistWriter(w io.Writer, title string) (*PlaylistWriter, error) {
	if _, err := fmt.Fprintf(w, "PLAYLIST: %s\n\n", title); err != nil {
		return nil, err
	}
	return &PlaylistWriter{w: w}, nil
}

// Add appends one video block followed by the separator.
func (p *PlaylistWriter) Add(e CacheEntry) error {
	if err := WriteVideoBlock(p.w, e); err != nil {
		return err
	}
	_, err := io.WriteString(p.w, videoSeparator)
	return err
}

// RenderVideo returns the artifact text for a single video.
func RenderVideo(e CacheEntry) string {
	var sb strings.Builder
	_ = WriteVideoBlock(&sb, e)
	return sb.String()
}

// RenderPlaylist returns the artifact text for a playlist.
func RenderPlaylist(title string, entries []CacheEntry) string {
	var sb strings.Builder
	pw, _ := NewPlaylistWriter(&sb, title)
	for _, e := range entries {
		_ = pw.Add(e)
	}
	return sb.String()
}

// ArtifactPath returns <dir>/<slug(title)>.txt.
func ArtifactPath(dir, title string) string {
	return filepath.Join(dir, Slugify(title)+".txt")
}

// createArtifact opens path for writing, truncating an earlier artifact.
func createArtifact(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	return f, nil
}
