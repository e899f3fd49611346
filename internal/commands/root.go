package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	configCmd "github.com/turbo360/crewupload/internal/commands/config"
	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/internal/version"
	"github.com/turbo360/crewupload/pkg/config"
	"github.com/turbo360/crewupload/pkg/logrium"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crewupload",
		Short: "Crew footage uploader",
		Long:  "Resumable upload of camera cards and production files to the Turbo upload service",
		// Errors are presented in main.go.
		// Usage is still printed for unknown commands; commands set SilenceUsage themselves.
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.LoadDotEnv(".env"); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
				os.Exit(1)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")

			displayOpts, err := ui.NewDisplayConfig(cmd, verbose)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting display options: %v\n", err)
				os.Exit(1)
			}

			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			if verbose {
				logFile, err := logrium.Setup(displayOpts.IsInteractive, cfg.GetLogLevel())
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error setting up logger: %v\n", err)
					os.Exit(1)
				}
				if logFile != "" {
					fmt.Fprintf(os.Stderr, "Debug logs: %s\n", logFile)
				}
			} else {
				logrium.Disable()
			}

			slog.Debug("Config loaded", "environment", cfg.Environment())

			ctx := context.WithValue(cmd.Context(), config.GetContextKey(), cfg)
			ctx = context.WithValue(ctx, ui.GetDisplayConfigContextKey(), displayOpts)
			cmd.SetContext(ctx)

			if cmd.Name() != "version" && !isConfigCommand(cmd) {
				version.PrintUpdateNotification(cmd.Context(), cfg.SkipVersionCheck)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output and animations")
	rootCmd.PersistentFlags().Bool("no-ansi", false, "Disable colored output and animations (equivalent to --no-color)")
	rootCmd.PersistentFlags().Bool("plain", false, "Print progress as plain lines instead of the live view")

	rootCmd.AddCommand(NewLoginCmd())
	rootCmd.AddCommand(NewLogoutCmd())
	rootCmd.AddCommand(NewSessionCmd())
	rootCmd.AddCommand(NewUploadCmd())
	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(configCmd.NewConfigCmd())

	return rootCmd
}

// isConfigCommand reports whether cmd is part of the config command group
func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}
