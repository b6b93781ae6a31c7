// Package delivery sends finished summaries to the console, by SMTP or AWS SES,
// and copies raw artifacts to the clipboard.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

// Output methods accepted by New.
const (
	OutputConsole = "console"
	OutputMail    = "mail"
	OutputSES     = "ses"
)

// ErrNoRecipient is returned by email channels when Message.To is empty.
var ErrNoRecipient = errors.New("delivery: no recipient address")

// New returns the dispatcher for output. Console output goes to stdout.
func New(ctx context.Context, output string, cfg *engine.Config, stdout io.Writer) (engine.Dispatcher, error) {
	var d engine.Dispatcher
	switch output {
	case "", OutputConsole:
		d = NewConsole(stdout)
	case OutputMail:
		m, err := NewMail(cfg)
		if err != nil {
			return nil, err
		}
		d = m
	case OutputSES:
		s, err := NewSES(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d = s
	default:
		return nil, fmt.Errorf("delivery: unknown output %q (valid: console, mail, ses)", output)
	}
	return &counted{name: output, next: d}, nil
}

// counted records delivery metrics around another dispatcher.
type counted struct {
	name string
	next engine.Dispatcher
}

func (c *counted) Deliver(ctx context.Context, m engine.Message) error {
	if err := c.next.Deliver(ctx, m); err != nil {
		engine.IncrDeliveryError()
		return fmt.Errorf("%s: %w", c.name, err)
	}
	engine.IncrDelivery()
	slog.Debug("delivered", slog.String("output", c.name), slog.String("subject", m.Subject))
	return nil
}
