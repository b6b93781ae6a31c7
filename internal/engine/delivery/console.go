package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Console prints summaries. Markdown is rendered with glamour only when the
// writer is a terminal; pipes and files get the raw text.
type Console struct {
	w        io.Writer
	terminal bool
	width    int
}

// NewConsole writes to w.
func NewConsole(w io.Writer) *Console {
	c := &Console{w: w, width: 80}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.terminal = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 10 {
			c.width = width - 4
		}
	}
	return c
}

func (c *Console) Deliver(_ context.Context, m engine.Message) error {
	out := m.Body
	if c.terminal {
		rendered, err := renderMarkdown(m.Body, c.width)
		if err != nil {
			slog.Debug("console: markdown render failed, printing raw", slog.Any("error", err))
		} else {
			out = rendered
		}
	}
	if m.Subject != "" && !c.terminal {
		if _, err := fmt.Fprintf(c.w, "%s\n\n", m.Subject); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(c.w, out)
	return err
}

func renderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(termenv.EnvColorProfile()),
	)
	if err != nil {
		return "", fmt.Errorf("creating terminal renderer: %w", err)
	}
	return r.Render(content)
}
