// Package prompt asks the user for the values the CLI does not get from flags.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user aborts a prompt (Esc / Ctrl+C / EOF on a required field).
var ErrCancelled = errors.New("prompt cancelled")

// Field describes one question.
type Field struct {
	Label       string
	Placeholder string
	Required    bool
}

// Prompter asks questions on a terminal with a text input, or reads plain
// lines when stdin is not a terminal.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	lines       *bufio.Reader
	interactive bool
}

// New inspects in: a terminal gets the interactive input, anything else is read line by line.
func New(in *os.File, out io.Writer) *Prompter {
	p := NewLineReader(in, out)
	p.interactive = term.IsTerminal(int(in.Fd()))
	return p
}

// NewLineReader always reads plain lines from in.
func NewLineReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, lines: bufio.NewReader(in)}
}

// Ask returns the trimmed answer. Required fields are asked again until non-empty.
func (p *Prompter) Ask(f Field) (string, error) {
	for {
		var (
			v   string
			err error
		)
		if p.interactive {
			v, err = p.askInteractive(f)
		} else {
			v, err = p.askLine(f)
		}
		if err != nil {
			return "", err
		}
		v = strings.TrimSpace(v)
		if v != "" || !f.Required {
			return v, nil
		}
	}
}

func (p *Prompter) askLine(f Field) (string, error) {
	fmt.Fprintf(p.out, "%s ", f.Label)
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			if f.Required {
				return "", ErrCancelled
			}
			return "", nil
		}
		return "", err
	}
	return line, nil
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type inputModel struct {
	field     Field
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(f Field) inputModel {
	ti := textinput.New()
	ti.Placeholder = f.Placeholder
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()
	return inputModel{field: f, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	hint := "Enter: confirm  Esc: cancel"
	if !m.field.Required {
		hint = "Enter: confirm (empty to skip)  Esc: cancel"
	}
	return fmt.Sprintf("%s\n%s\n%s\n", labelStyle.Render(m.field.Label), m.input.View(), dimStyle.Render(hint))
}

func (p *Prompter) askInteractive(f Field) (string, error) {
	final, err := tea.NewProgram(newInputModel(f), tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.input.Value(), nil
}
