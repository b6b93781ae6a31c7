package sources

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// fallbackStride is the synthetic spacing, in seconds, of lines printed by the
// external command, which carries no timing of its own.
const fallbackStride = 5

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the program with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandFallback extracts a transcript with `<Command> --transcript <watch URL>`.
type CommandFallback struct {
	Command string
	Run     CommandRunner
}

// NewCommandFallback returns nil when command is empty.
func NewCommandFallback(command string) *CommandFallback {
	if command == "" {
		return nil
	}
	return &CommandFallback{Command: command, Run: ExecRunner}
}

// Fetch turns every output line into one entry spaced fallbackStride seconds apart.
func (f *CommandFallback) Fetch(ctx context.Context, videoID string) ([]engine.TranscriptEntry, error) {
	out, err := f.Run(ctx, f.Command, "--transcript", WatchURL(videoID))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", f.Command, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", f.Command, err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, fmt.Errorf("%s: empty output", f.Command)
	}

	lines := strings.Split(text, "\n")
	entries := make([]engine.TranscriptEntry, 0, len(lines))
	for i, line := range lines {
		entries = append(entries, engine.TranscriptEntry{
			Text:     strings.TrimRight(line, "\r"),
			Start:    float64(i * fallbackStride),
			Duration: fallbackStride,
		})
	}
	return entries, nil
}
