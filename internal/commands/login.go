package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/ui"
	uiCommands "github.com/turbo360/crewupload/internal/ui/commands"
	"github.com/turbo360/crewupload/pkg/config"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the crew password",
		Long: `Exchange the crew password for a login token and store it in the configuration.

Example:
  crewupload login
  echo "$CREW_PASSWORD" | crewupload login --password-stdin`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, displayOpts, err := commandContext(cmd)
	if err != nil {
		return err
	}

	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	password, err := readPassword(cmd.InOrStdin(), fromStdin)
	if err != nil {
		return err
	}

	provider := auth.NewProvider(cfg, config.Save)
	client, err := newAPIClient(cfg, provider)
	if err != nil {
		return err
	}

	model := uiCommands.NewLoginView(cmd.Context(), uiCommands.LoginConfig{
		DisplayConfig: displayOpts,
		Client:        client,
		Tokens:        provider,
		Password:      password,
		Environment:   cfg.Environment(),
		Out:           cmd.OutOrStdout(),
	})
	return runProgram(newProgram(model, displayOpts, tea.WithOutput(cmd.OutOrStdout())))
}

// readPassword takes the first line of stdin or prompts on the terminal
func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return "", ui.NewValidationError(errors.New("no terminal to prompt for the password. Use --password-stdin"))
		}
		return ui.PromptPassword("Crew password:", nil)
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", ui.NewFileSystemError(fmt.Errorf("failed to read password from stdin: %w", err))
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", ui.NewValidationError(errors.New("password is required"))
	}
	return password, nil
}
