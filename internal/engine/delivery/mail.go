package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/wneessen/go-mail"
)

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mail sends summaries over SMTP with STARTTLS (or implicit TLS on port 465).
type Mail struct {
	from   string
	sender mailSender
}

// NewMail builds an SMTP client from the SMTP_* keys.
func NewMail(cfg *engine.Config) (*Mail, error) {
	timeout := 2 * cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTimeout(timeout),
	}
	if cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mail{from: cfg.EmailFrom, sender: client}, nil
}

// buildMessage creates a multipart message: markdown as text/plain, rendered HTML as alternative.
func buildMessage(from string, m engine.Message) (*mail.Msg, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}
	htmlBody, err := ToHTML(m.Subject, m.Body)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

func (s *Mail) Deliver(ctx context.Context, m engine.Message) error {
	msg, err := buildMessage(s.from, m)
	if err != nil {
		return err
	}
	if err := s.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
