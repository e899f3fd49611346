package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/pkg/config"
)

func newTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Manage error reporting",
		Long: `Crash and error reports help fix upload problems. They carry error messages,
file sizes and system details, never file contents.

Reporting can also be turned off for one shell with:
  export CREWUPLOAD_TELEMETRY_DISABLED=true`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable error reporting",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return setTelemetry(cmd, false) },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable error reporting",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return setTelemetry(cmd, true) },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether error reporting is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.GetConfigFromContext(cmd)
			if err != nil {
				return ui.NewConfigurationError(err)
			}
			if cfg.IsTelemetryEnabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "Telemetry: enabled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Telemetry: disabled")
			}
			return nil
		},
	})

	return cmd
}

func setTelemetry(cmd *cobra.Command, enabled bool) error {
	cmd.SilenceUsage = true

	cfg, err := config.GetConfigFromContext(cmd)
	if err != nil {
		return ui.NewConfigurationError(err)
	}

	cfg.TelemetryEnabled = &enabled
	if err := config.Save(cfg); err != nil {
		return ui.NewFileSystemError(fmt.Errorf("failed to save config: %w", err))
	}

	if enabled {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Telemetry enabled")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Telemetry disabled")
	}
	return nil
}
