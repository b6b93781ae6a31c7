// Package toolutil provides shared helper functions for ytsaver MCP tools.
package toolutil

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// MaxToolTextRunes caps text returned inline in a tool result. Longer artifacts
// are truncated; the full file stays at its reported path.
const MaxToolTextRunes = 60000

// ReadText reads a UTF-8 file and caps it at limit runes.
func ReadText(path string, limit int) (text string, truncated bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	text = string(data)
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		return engine.TruncateRunes(text, limit, "\n…[truncated]"), true, nil
	}
	return text, false, nil
}

// RequireURL trims u and rejects an empty value.
func RequireURL(u string) (string, error) {
	u = strings.TrimSpace(u)
	if u == "" {
		return "", fmt.Errorf("url is required")
	}
	return u, nil
}
