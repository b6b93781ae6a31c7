package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Clipboard receives the raw artifact when summarization is disabled.
type Clipboard interface {
	Copy(text string) error
}

// SummaryCache stores one markdown summary per subject slug in Dir.
// A subject that already has a summary is never sent to the Summarizer again.
type SummaryCache struct {
	Dir        string
	Prompt     string
	Summarizer Summarizer
	Clipboard  Clipboard
}

// Path returns the summary file for subject.
func (s *SummaryCache) Path(subject string) string {
	return filepath.Join(s.Dir, Slugify(subject)+".md")
}

// GetOrSummarize returns the cached summary for subject when one exists.
// Otherwise, with useAPI false, the artifact is copied to the clipboard and ""
// is returned; a failed copy is logged, not returned. With useAPI true the
// artifact is summarized and the result cached. ErrUnauthorized from the
// summarizer is returned unchanged.
func (s *SummaryCache) GetOrSummarize(ctx context.Context, subject, artifactPath string, useAPI bool) (string, error) {
	path := s.Path(subject)
	if data, err := os.ReadFile(path); err == nil {
		metrics.SummaryHits.Add(1)
		slog.Info("summary: cached", slog.String("path", path))
		return string(data), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("summary: read %s: %w", path, err)
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("summary: read artifact: %w", err)
	}

	if !useAPI {
		if s.Clipboard == nil {
			return "", errors.New("summary: no clipboard available")
		}
		if err := s.Clipboard.Copy(string(artifact)); err != nil {
			IncrDeliveryError()
			slog.Warn("summary: clipboard copy failed", slog.String("artifact", artifactPath), slog.Any("error", err))
			return "", nil
		}
		slog.Info("transcript copied to the clipboard; paste it into your LLM of choice", slog.String("artifact", artifactPath))
		return "", nil
	}

	if s.Summarizer == nil {
		return "", errors.New("summary: no summarizer configured")
	}
	var summary string
	err = TrackOperation(ctx, "summarize", func(ctx context.Context) error {
		var err error
		summary, err = s.Summarizer.Summarize(ctx, BuildSummaryPrompt(s.Prompt, subject), string(artifact))
		return err
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return "", fmt.Errorf("summary: write %s: %w", path, err)
	}
	slog.Info("summary: written", slog.String("path", path))
	return summary, nil
}
