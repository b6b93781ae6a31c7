// Package ytserver exposes the transcript pipeline as MCP tools.
package ytserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/anatolykoptev/go_ytsaver/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TranscriptInput is the input of youtube_transcript.
type TranscriptInput struct {
	URL string `json:"url" jsonschema:"YouTube video or playlist URL"`
}

// TranscriptOutput is the artifact of one run plus its text.
type TranscriptOutput struct {
	Target       string   `json:"target"`
	Title        string   `json:"title"`
	ArtifactPath string   `json:"artifact_path"`
	Videos       int      `json:"videos"`
	Skipped      []string `json:"skipped,omitempty"`
	CachedVideos int      `json:"cached_videos"`
	Text         string   `json:"text"`
	Truncated    bool     `json:"truncated,omitempty"`
}

// SummaryInput is the input of youtube_summary.
type SummaryInput struct {
	URL     string `json:"url" jsonschema:"YouTube video or playlist URL"`
	Subject string `json:"subject,omitempty" jsonschema:"Summary title, defaults to the video or playlist title"`
}

// SummaryOutput is a markdown summary and where it was cached.
type SummaryOutput struct {
	Target       string   `json:"target"`
	Subject      string   `json:"subject"`
	ArtifactPath string   `json:"artifact_path"`
	SummaryPath  string   `json:"summary_path"`
	Videos       int      `json:"videos"`
	Skipped      []string `json:"skipped,omitempty"`
	Summary      string   `json:"summary"`
}

// Server runs pipeline requests on behalf of MCP clients. Runs are serialized
// because the workspace cache is a plain file per channel.
type Server struct {
	p  *engine.Pipeline
	mu sync.Mutex
}

// RegisterTools registers youtube_transcript and youtube_summary on server.
// youtube_summary is only registered when p has a summarizer.
func RegisterTools(server *mcp.Server, p *engine.Pipeline) *Server {
	s := &Server{p: p}
	registerTranscript(server, s)
	if p.Summarizer != nil {
		registerSummary(server, s)
	}
	return s
}

func (s *Server) run(ctx context.Context, req engine.Request) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Tool calls never deliver; the result goes back to the client.
	p := *s.p
	p.Dispatcher = nil
	p.Clipboard = nil
	return p.Run(ctx, req)
}

// Transcript writes the artifact for input.URL and returns its contents.
func (s *Server) Transcript(ctx context.Context, input TranscriptInput) (TranscriptOutput, error) {
	u, err := toolutil.RequireURL(input.URL)
	if err != nil {
		return TranscriptOutput{}, err
	}
	res, err := s.run(ctx, engine.Request{URL: u, ArtifactOnly: true})
	if err != nil {
		return TranscriptOutput{}, err
	}
	text, truncated, err := toolutil.ReadText(res.ArtifactPath, toolutil.MaxToolTextRunes)
	if err != nil {
		return TranscriptOutput{}, err
	}
	return TranscriptOutput{
		Target:       res.Target.String(),
		Title:        res.Title,
		ArtifactPath: res.ArtifactPath,
		Videos:       res.Videos,
		Skipped:      res.Skipped,
		CachedVideos: res.CachedVideos,
		Text:         text,
		Truncated:    truncated,
	}, nil
}

// Summary runs the full pipeline with the summarization API and returns the
// markdown summary instead of delivering it.
func (s *Server) Summary(ctx context.Context, input SummaryInput) (SummaryOutput, error) {
	u, err := toolutil.RequireURL(input.URL)
	if err != nil {
		return SummaryOutput{}, err
	}
	if s.p.Summarizer == nil {
		return SummaryOutput{}, fmt.Errorf("summarization is not configured (set %s)", engine.KeyLLMAPIKey)
	}
	res, err := s.run(ctx, engine.Request{URL: u, Subject: input.Subject, UseAPI: true})
	if err != nil {
		return SummaryOutput{}, err
	}
	cache := engine.SummaryCache{Dir: res.Workspace}
	return SummaryOutput{
		Target:       res.Target.String(),
		Subject:      res.Subject,
		ArtifactPath: res.ArtifactPath,
		SummaryPath:  cache.Path(res.Subject),
		Videos:       res.Videos,
		Skipped:      res.Skipped,
		Summary:      res.Summary,
	}, nil
}

func registerTranscript(server *mcp.Server, s *Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the transcript of a YouTube video or every video of a playlist. Transcripts are cached per channel, so repeated calls only fetch new videos. Returns the plain-text artifact (header with title, channel, publish date and description, then timestamped lines) and its path on disk.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
		out, err := s.Transcript(ctx, input)
		if err != nil {
			slog.Warn("youtube_transcript failed", slog.String("url", input.URL), slog.Any("error", err))
			return nil, TranscriptOutput{}, err
		}
		return nil, out, nil
	})
}

func registerSummary(server *mcp.Server, s *Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_summary",
		Description: "Summarize a YouTube video or playlist with the configured LLM. Summaries are cached as markdown per subject; an existing summary is returned without calling the LLM again.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SummaryInput) (*mcp.CallToolResult, SummaryOutput, error) {
		out, err := s.Summary(ctx, input)
		if err != nil {
			slog.Warn("youtube_summary failed", slog.String("url", input.URL), slog.Any("error", err))
			return nil, SummaryOutput{}, err
		}
		return nil, out, nil
	})
}
