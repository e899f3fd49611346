package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/api"
	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/pkg/config"
	"github.com/turbo360/crewupload/pkg/manifest"
)

// NewSessionCmd creates the session command group
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the crew upload session",
		Long: `Every upload is attached to a session naming the project and the crew.
The active session is stored in the configuration until it is ended.`,
	}

	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionEndCmd())
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session for a project and crew",
		Long: `Start a session for a project and crew.

Example:
  crewupload session start --project "Harbour Lights" --crew "B-Cam"
  crewupload session start --manifest ./crewupload.toml`,
		Args: cobra.NoArgs,
		RunE: runSessionStart,
	}
	cmd.Flags().String("project", "", "Project name")
	cmd.Flags().String("crew", "", "Crew name")
	cmd.Flags().String("notes", "", "Notes for the post-production team")
	cmd.Flags().String("manifest", "", "Take the session from a batch manifest")
	return cmd
}

func runSessionStart(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, displayOpts, err := commandContext(cmd)
	if err != nil {
		return err
	}

	req := api.CreateSessionRequest{}
	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return ui.NewValidationError(err)
		}
		req = sessionRequestFromManifest(m)
	}
	if v, _ := cmd.Flags().GetString("project"); v != "" {
		req.ProjectName = v
	}
	if v, _ := cmd.Flags().GetString("crew"); v != "" {
		req.CrewName = v
	}
	if v, _ := cmd.Flags().GetString("notes"); v != "" {
		req.Notes = v
	}
	if req.ProjectName == "" || req.CrewName == "" {
		return ui.NewValidationError(errors.New("--project and --crew are required"))
	}

	provider := auth.NewProvider(cfg, config.Save)
	if err := requireLogin(cmd, provider); err != nil {
		return err
	}
	client, err := newAPIClient(cfg, provider)
	if err != nil {
		return err
	}

	spinner := ui.NewSimpleSpinnerTo(cmd.OutOrStdout(), "Starting session...", displayOpts.IsInteractive)
	spinner.Start()
	session, err := startSession(cmd.Context(), client, cfg, req)
	spinner.Stop()
	if err != nil {
		return err
	}

	printSession(cmd.OutOrStdout(), "Session started", session, displayOpts)
	return nil
}

// startSession creates the session on the server and makes it the active one
func startSession(ctx context.Context, client api.Client, cfg *config.Config, req api.CreateSessionRequest) (*config.Session, error) {
	resp, err := client.CreateSession(ctx, req)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, ui.NewAuthError(err)
		}
		return nil, ui.NewAPIError(fmt.Errorf("failed to start session: %w", err))
	}

	cfg.Session = &config.Session{
		ID:          resp.SessionID,
		ProjectName: req.ProjectName,
		CrewName:    req.CrewName,
		Notes:       req.Notes,
	}
	if err := config.Save(cfg); err != nil {
		return nil, ui.NewConfigurationError(err)
	}
	return cfg.Session, nil
}

func sessionRequestFromManifest(m *manifest.Manifest) api.CreateSessionRequest {
	return api.CreateSessionRequest{
		ProjectName: m.Session.Project,
		CrewName:    m.Session.Crew,
		Notes:       m.Session.Notes,
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, displayOpts, err := commandContext(cmd)
			if err != nil {
				return err
			}
			if cfg.Session == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session. Start one with 'crewupload session start'")
				return nil
			}
			printSession(cmd.OutOrStdout(), "Active session", cfg.Session, displayOpts)
			return nil
		},
	}
}

func newSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, _, err := commandContext(cmd)
			if err != nil {
				return err
			}
			if cfg.Session == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session")
				return nil
			}

			project, crew := cfg.Session.ProjectName, cfg.Session.CrewName
			cfg.Session = nil
			if err := config.Save(cfg); err != nil {
				return ui.NewConfigurationError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Ended session for %s / %s\n", project, crew)
			return nil
		},
	}
}

func sessionFields(s *config.Session) []ui.Field {
	return []ui.Field{
		{Label: "Project", Value: s.ProjectName},
		{Label: "Crew", Value: s.CrewName},
		{Label: "Notes", Value: s.Notes},
		{Label: "Session", Value: s.ID},
	}
}

func printSession(w io.Writer, title string, s *config.Session, displayOpts ui.DisplayConfig) {
	if displayOpts.SimpleOutput() {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, ui.RenderFields(sessionFields(s)))
		return
	}
	fmt.Fprintln(w, ui.RenderPanel(title, sessionFields(s)))
}
