package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PasswordPrompt reads a secret without echoing it
type PasswordPrompt struct {
	input     textinput.Model
	submitted bool
	cancelled bool
}

// NewPasswordPrompt creates a masked input labelled with prompt
func NewPasswordPrompt(prompt string) *PasswordPrompt {
	input := textinput.New()
	input.Prompt = prompt + " "
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.Focus()
	return &PasswordPrompt{input: input}
}

// Value returns what was typed
func (m *PasswordPrompt) Value() string {
	return m.input.Value()
}

// Cancelled reports whether the prompt was aborted
func (m *PasswordPrompt) Cancelled() bool {
	return m.cancelled
}

func (m *PasswordPrompt) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PasswordPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SignalCancelMsg:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.submitted = true
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

func (m *PasswordPrompt) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return m.input.View() + "\n" + HelpStyle.Render("enter to submit, esc to cancel") + "\n"
}

// PromptPassword asks for a secret on the terminal
func PromptPassword(prompt string, out io.Writer) (string, error) {
	if out == nil {
		out = os.Stdout
	}
	model := NewPasswordPrompt(prompt)
	p := tea.NewProgram(model, tea.WithOutput(out))
	done := SetupSignalHandling(p, 0)
	defer close(done)

	if _, err := p.Run(); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if model.Cancelled() {
		return "", NewUserCancelledError()
	}
	if model.Value() == "" {
		return "", NewValidationError(errors.New("password is required"))
	}
	return model.Value(), nil
}
