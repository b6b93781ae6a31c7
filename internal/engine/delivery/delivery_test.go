package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestConsolePrintsRawWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	require.NoError(t, c.Deliver(context.Background(), engine.Message{Subject: "Talk", Body: "## Points\n\n- one"}))
	assert.Equal(t, "Talk\n\n## Points\n\n- one\n", buf.String())
}

func TestToHTML(t *testing.T) {
	out, err := ToHTML("A & B", "## Key points\n\n- **one**\n- two\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>A &amp; B</title>")
	assert.Contains(t, out, `<h2 id="key-points">Key points</h2>`)
	assert.Contains(t, out, "<strong>one</strong>")
	assert.Contains(t, out, "<table>")
}

type fakeSMTP struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSMTP) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.err
}

func TestMailDeliver(t *testing.T) {
	smtp := &fakeSMTP{}
	m := &Mail{from: "bot@example.com", sender: smtp}

	err := m.Deliver(context.Background(), engine.Message{Subject: "Weekly", Body: "## Hi", To: "me@example.com"})
	require.NoError(t, err)
	require.Len(t, smtp.sent, 1)

	rcpts, err := smtp.sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"me@example.com"}, rcpts)

	var raw bytes.Buffer
	_, err = smtp.sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "Subject: Weekly")
	assert.Contains(t, raw.String(), "text/plain")
	assert.Contains(t, raw.String(), "text/html")
}

func TestMailNeedsRecipient(t *testing.T) {
	smtp := &fakeSMTP{}
	m := &Mail{from: "bot@example.com", sender: smtp}
	err := m.Deliver(context.Background(), engine.Message{Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, smtp.sent)
}

func TestMailSendError(t *testing.T) {
	m := &Mail{from: "bot@example.com", sender: &fakeSMTP{err: errors.New("connection refused")}}
	err := m.Deliver(context.Background(), engine.Message{Subject: "x", Body: "y", To: "me@example.com"})
	assert.ErrorContains(t, err, "connection refused")
}

type fakeSES struct {
	in *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESDeliver(t *testing.T) {
	api := &fakeSES{}
	s := &SES{from: "bot@example.com", client: api}

	err := s.Deliver(context.Background(), engine.Message{Subject: "Weekly", Body: "## Hi", To: "me@example.com"})
	require.NoError(t, err)
	require.NotNil(t, api.in)
	assert.Equal(t, "bot@example.com", aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"me@example.com"}, api.in.Destination.ToAddresses)
	simple := api.in.Content.Simple
	assert.Equal(t, "Weekly", aws.ToString(simple.Subject.Data))
	assert.Equal(t, "## Hi", aws.ToString(simple.Body.Text.Data))
	assert.True(t, strings.Contains(aws.ToString(simple.Body.Html.Data), "<h2"))
}

type failingDispatcher struct{}

func (failingDispatcher) Deliver(context.Context, engine.Message) error { return errors.New("down") }

func TestCountedWrapsErrors(t *testing.T) {
	before := engine.GetMetrics()["delivery_errors"]
	d := &counted{name: "mail", next: failingDispatcher{}}
	err := d.Deliver(context.Background(), engine.Message{})
	assert.ErrorContains(t, err, "mail: down")
	assert.Equal(t, before+1, engine.GetMetrics()["delivery_errors"])
}

func TestNewUnknownOutput(t *testing.T) {
	_, err := New(context.Background(), "fax", &engine.Config{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown output")
}
