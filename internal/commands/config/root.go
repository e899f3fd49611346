package config

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command group
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage CLI configuration settings.

Configuration is stored in ~/.crewupload/config.yaml (override with CREWUPLOAD_CONFIG_PATH).
The login token and the active session are managed by 'crewupload login' and
'crewupload session'.`,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newTelemetryCmd())

	return cmd
}

// normalizeKey maps "max-concurrent" and "MaxConcurrent" to "maxconcurrent"
func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "-", ""))
}
