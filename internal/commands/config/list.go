package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turbo360/crewupload/pkg/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration",
		Long: `List the user-facing configuration keys and their values.

Example:
  crewupload config list`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	env := config.GetEnvironment()
	out := cmd.OutOrStdout()
	for _, key := range config.GetUserFacingKeys() {
		actualKey := config.GetEnvironmentPrefixedKey(normalizeKey(key), env)
		if !viper.IsSet(actualKey) {
			continue
		}
		fmt.Fprintf(out, "%s: %v\n", key, viper.Get(actualKey))
	}

	if viper.GetString(config.GetEnvironmentPrefixedKey("token", env)) != "" {
		fmt.Fprintln(out, "logged in: true")
	}
	if project := viper.GetString(config.GetEnvironmentPrefixedKey("session.project", env)); project != "" {
		fmt.Fprintf(out, "session: %s / %s\n", project, viper.GetString(config.GetEnvironmentPrefixedKey("session.crew", env)))
	}
	return nil
}
