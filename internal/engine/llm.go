package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/anatolykoptev/go-kit/llm"
)

// Summarizer turns an artifact into a summary using a prompt template.
type Summarizer interface {
	Summarize(ctx context.Context, prompt, text string) (string, error)
}

// LLMSummarizer is a Summarizer backed by an OpenAI-compatible chat API.
type LLMSummarizer struct {
	client      *llm.Client
	temperature float64
	maxTokens   int
}

// NewLLMSummarizer builds the chat client from c.
func NewLLMSummarizer(c *Config) *LLMSummarizer {
	client := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)
	return &LLMSummarizer{client: client, temperature: c.LLMTemperature, maxTokens: c.LLMMaxTokens}
}

// Summarize sends the prompt as the system message and the artifact as the
// user message. A credential rejection is returned as ErrUnauthorized.
func (s *LLMSummarizer) Summarize(ctx context.Context, prompt, text string) (string, error) {
	metrics.LLMCalls.Add(1)
	raw, err := s.client.Complete(ctx, prompt, text,
		llm.WithChatTemperature(s.temperature),
		llm.WithChatMaxTokens(s.maxTokens),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", classifyLLMError(err)
	}
	return NormalizeSummary(raw), nil
}

// classifyLLMError maps authorization failures to ErrUnauthorized.
func classifyLLMError(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "unauthorized", "invalid api key", "incorrect api key", "invalid_api_key"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("summarize: %w", err)
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// looksLikeHTML reports whether s is an HTML document or fragment rather than markdown.
func looksLikeHTML(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(l, "<") {
		return false
	}
	for _, tag := range []string{"<html", "<body", "<p>", "<h1", "<h2", "<h3", "<ul", "<ol", "<div"} {
		if strings.Contains(l, tag) {
			return true
		}
	}
	return false
}

// NormalizeSummary strips code fences and converts HTML replies to markdown.
func NormalizeSummary(raw string) string {
	s := stripFences(raw)
	if !looksLikeHTML(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		slog.Debug("summary: html conversion failed", slog.Any("error", err))
		return s
	}
	return strings.TrimSpace(md)
}
