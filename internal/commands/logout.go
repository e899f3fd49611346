package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/pkg/config"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored token",
		Long: `Revoke the login token on the server and remove it, together with the active
session, from the configuration. The local credentials are cleared even when the
server cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, displayOpts, err := commandContext(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !cfg.IsLoggedIn() {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}

	provider := auth.NewProvider(cfg, nil)
	client, err := newAPIClient(cfg, provider)
	if err != nil {
		return err
	}

	spinner := ui.NewSimpleSpinnerTo(out, "Logging out...", displayOpts.IsInteractive)
	spinner.Start()
	err = client.Logout(cmd.Context())
	spinner.Stop()
	if err != nil {
		slog.Warn("Server logout failed, clearing local credentials anyway", "error", err)
		fmt.Fprintln(out, ui.WarningStyle.Render("! Could not revoke the token on the server"))
	}

	cfg.Token = ""
	cfg.Session = nil
	if err := config.Save(cfg); err != nil {
		return ui.NewConfigurationError(err)
	}

	fmt.Fprintln(out, "✓ Logged out")
	return nil
}
