package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/pkg/config"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Examples:
  crewupload config get max-concurrent
  crewupload config get chunk-size-mb`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	key := normalizeKey(args[0])
	if !config.IsValidUserFacingKey(key) {
		return ui.NewValidationError(fmt.Errorf("'%s' is not a recognized configuration key. Run 'crewupload config set --help' for valid keys", args[0]))
	}

	actualKey := config.GetEnvironmentPrefixedKey(key, config.GetEnvironment())
	if !viper.IsSet(actualKey) {
		return ui.NewValidationError(fmt.Errorf("configuration key '%s' not set", args[0]))
	}

	fmt.Fprintln(cmd.OutOrStdout(), viper.Get(actualKey))
	return nil
}
