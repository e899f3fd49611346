package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bugsnag/bugsnag-go/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/turbo360/crewupload/internal/api"
	"github.com/turbo360/crewupload/internal/ui"
	crewBugsnag "github.com/turbo360/crewupload/pkg/bugsnag"
	"github.com/turbo360/crewupload/pkg/config"
)

// LoginState represents the current state of the login flow
type LoginState int

const (
	StateAuthenticating LoginState = iota
	StateSavingToken
	StateSuccess
	StateError
)

// TokenStore keeps the issued token, persisting it with the config
type TokenStore interface {
	Set(token string) error
}

type LoginConfig struct {
	ui.DisplayConfig

	Client   api.Client
	Tokens   TokenStore
	Password string

	// Environment is shown when logging in anywhere but prod
	Environment config.Environment

	Out io.Writer
}

// LoginView is the Bubbletea model for the login flow
type LoginView struct {
	ctx     context.Context
	state   LoginState
	spinner *ui.SpinnerModel
	token   string
	err     error

	conf LoginConfig
}

// NewLoginView creates a new login view
func NewLoginView(ctx context.Context, conf LoginConfig) *LoginView {
	if conf.Out == nil {
		conf.Out = os.Stdout
	}
	return &LoginView{
		ctx:     ctx,
		state:   StateAuthenticating,
		spinner: ui.NewSpinner(),
		conf:    conf,
	}
}

// Error returns the error if any occurred during execution
func (m *LoginView) Error() error {
	return m.err
}

func (m *LoginView) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), m.authenticate)
}

func (m *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.SignalCancelMsg:
		m.err = ui.NewUserCancelledError()
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.err = ui.NewUserCancelledError()
			return m, tea.Quit
		}

	case tokenIssuedMsg:
		m.token = msg.token
		m.state = StateSavingToken
		if m.conf.SimpleOutput() {
			fmt.Fprintln(m.conf.Out, "✓ Authenticated")
		}
		return m, m.saveToken

	case tokenSavedMsg:
		m.state = StateSuccess
		if m.conf.SimpleOutput() {
			fmt.Fprintln(m.conf.Out, "✓ Saved login token")
			fmt.Fprintln(m.conf.Out, "\nStart a session with 'crewupload session start'")
		}
		return m, tea.Quit

	case *ui.UIError:
		msg.SilentExit = true
		m.err = msg
		m.state = StateError

		if msg.Type != ui.ErrorTypeAuth && msg.Type != ui.ErrorTypeUserCancelled {
			crewBugsnag.NotifyWithMetadata(m.ctx, msg.Err, bugsnag.SeverityError, bugsnag.MetaData{
				"login": {"error_type": fmt.Sprintf("%d", msg.Type)},
			})
		}

		if m.conf.SimpleOutput() {
			fmt.Fprintf(m.conf.Out, "Error: %s\n", msg.Error())
		}
		return m, tea.Quit

	default:
		if !m.conf.SimpleOutput() {
			spinnerModel, cmd := m.spinner.Update(msg)
			m.spinner = spinnerModel.(*ui.SpinnerModel) //nolint:errcheck // Type assertion guaranteed by SpinnerModel structure
			return m, cmd
		}
	}

	return m, nil
}

func (m *LoginView) View() string {
	if m.conf.SimpleOutput() {
		return ""
	}

	var output strings.Builder
	if m.conf.Environment != "" && m.conf.Environment != config.EnvProd {
		output.WriteString(ui.PendingStyle.Bold(true).Render(fmt.Sprintf("Logging in to %s", m.conf.Environment)))
		output.WriteString("\n")
	}

	line := func(icon, text string, style lipgloss.Style) {
		output.WriteString(fmt.Sprintf("%s  %s\n", icon, style.Render(text)))
	}

	switch {
	case m.state == StateAuthenticating:
		line(m.spinner.View(), "Checking password...", ui.CyanStyle)
	case m.state == StateError && m.token == "":
		line("✗", "Checking password", ui.RedStyle)
	default:
		line("✓", "Authenticated", ui.SuccessStyle)
	}

	switch {
	case m.state == StateSavingToken:
		line(m.spinner.View(), "Saving login token...", ui.CyanStyle)
	case m.state == StateSuccess:
		line("✓", "Saved login token", ui.SuccessStyle)
	default:
		line("-", "Save login token", ui.PendingStyle)
	}

	if m.state == StateSuccess {
		output.WriteString("\nStart a session with 'crewupload session start'\n")
	}
	if m.state == StateError {
		output.WriteString("\n")
		output.WriteString(ui.FormatError(m.err))
	}
	return output.String()
}

type tokenIssuedMsg struct {
	token string
}

type tokenSavedMsg struct{}

func (m *LoginView) authenticate() tea.Msg {
	token, err := m.conf.Client.Login(m.ctx, m.conf.Password)
	if err != nil {
		return ui.NewAuthError(fmt.Errorf("login failed: %w", err))
	}
	return tokenIssuedMsg{token: token}
}

func (m *LoginView) saveToken() tea.Msg {
	if err := m.conf.Tokens.Set(m.token); err != nil {
		return ui.NewConfigurationError(err)
	}
	return tokenSavedMsg{}
}
