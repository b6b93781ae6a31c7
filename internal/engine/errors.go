package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a metadata lookup comes back empty.
	ErrNotFound = errors.New("not found")

	// ErrInvalidURL is returned when a URL is neither a video nor a playlist link.
	ErrInvalidURL = errors.New("invalid URL: please provide a valid YouTube video or playlist URL")

	// ErrUnauthorized is returned when the summarization API rejects the credentials.
	// It is never retried.
	ErrUnauthorized = errors.New("summarization API: unauthorized")
)

// ConfigError is a fatal startup error. Expected lists every key the current
// mode needs so the user can fix the config file in one pass.
type ConfigError struct {
	Path     string
	Reason   string
	Missing  []string
	Expected []string
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "config %s: %s", e.Path, e.Reason)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, " (missing: %s)", strings.Join(e.Missing, ", "))
	}
	if len(e.Expected) > 0 {
		fmt.Fprintf(&sb, "\nexpected keys:\n  %s", strings.Join(e.Expected, "\n  "))
	}
	return sb.String()
}

// NotFoundError wraps ErrNotFound with the kind and id that were looked up.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
