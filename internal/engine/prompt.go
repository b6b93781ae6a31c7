package engine

import "strings"

// LLM prompt templates: data only, no logic beyond placeholder expansion.

// DefaultSummaryPrompt is used when no PROMPT_FILE is configured (serve mode).
const DefaultSummaryPrompt = `You summarize YouTube transcripts for a busy reader.

The user message is a text export with a metadata header (VIDEO_ID, TITLE,
CHANNEL, PUBLISHED AT, DESCRIPTION) followed by a timestamped transcript. A
playlist export repeats that block once per video.

Write the summary in Markdown:
- Start with a level-2 heading containing {{subject}}.
- One short paragraph with the overall topic.
- A "Key points" list of 5-10 bullets with concrete facts, numbers and names.
- For playlists, one sub-heading per video with 2-4 bullets each.
- Quote timestamps (in seconds) where a point is made, as [123.45].

Rules:
- Use ONLY information from the transcript and description.
- Answer in the language of the transcript.
- If the transcript is marked unavailable, summarize the description and say so.
- Output Markdown only, no code fences, no HTML.`

// subjectPlaceholder is replaced by the run's subject in any prompt template.
const subjectPlaceholder = "{{subject}}"

// BuildSummaryPrompt expands the subject placeholder in tmpl. An empty
// template falls back to DefaultSummaryPrompt.
func BuildSummaryPrompt(tmpl, subject string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultSummaryPrompt
	}
	return strings.ReplaceAll(tmpl, subjectPlaceholder, subject)
}
