package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/api"
	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/internal/version"
	"github.com/turbo360/crewupload/pkg/config"
)

// erroringModel is a view that records its failure
type erroringModel interface {
	tea.Model
	Error() error
}

// commandContext is what every command loads from the root's PersistentPreRun
func commandContext(cmd *cobra.Command) (*config.Config, ui.DisplayConfig, error) {
	displayOpts, err := ui.GetDisplayConfigFromContext(cmd)
	if err != nil {
		return nil, ui.DisplayConfig{}, ui.NewInternalError(fmt.Errorf("failed to get display options: %w", err))
	}
	cfg, err := config.GetConfigFromContext(cmd)
	if err != nil {
		return nil, ui.DisplayConfig{}, ui.NewInternalError(fmt.Errorf("failed to get config: %w", err))
	}
	return cfg, displayOpts, nil
}

// newAPIClient builds the session API client for the configured environment
func newAPIClient(cfg *config.Config, tokens api.TokenProvider) (api.Client, error) {
	client, err := api.NewClient(cfg.GetEnvConfig().APIUrl, tokens, api.WithUserAgent(version.UserAgent()))
	if err != nil {
		return nil, ui.NewConfigurationError(fmt.Errorf("failed to create API client: %w", err))
	}
	return client, nil
}

// requireLogin fails early when no usable token is stored
func requireLogin(cmd *cobra.Command, provider *auth.Provider) error {
	if _, err := provider.Token(cmd.Context()); err != nil {
		return ui.NewAuthError(err)
	}
	return nil
}

// newProgram creates the Bubbletea program for a view; without a terminal it renders nothing and reads no input
func newProgram(model tea.Model, displayOpts ui.DisplayConfig, opts ...tea.ProgramOption) *tea.Program {
	if !displayOpts.IsInteractive {
		opts = append(opts, tea.WithoutRenderer(), tea.WithInput(nil))
	}
	return tea.NewProgram(model, opts...)
}

// runProgram runs p to completion and returns the error its view recorded
func runProgram(p *tea.Program) error {
	doneCh := ui.SetupSignalHandling(p, 0)
	defer close(doneCh)

	finalModel, err := p.Run()
	if err != nil {
		return ui.NewInternalError(fmt.Errorf("ui error: %w", err))
	}
	if m, ok := finalModel.(erroringModel); ok {
		return m.Error()
	}
	return nil
}
