package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/pkg/config"
)

func newSetCmd() *cobra.Command {
	var keys strings.Builder
	for _, k := range config.GetUserFacingKeys() {
		fmt.Fprintf(&keys, "  %-20s %s\n", k, config.GetConfigKeyDescription(normalizeKey(k)))
	}

	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Keys:
` + keys.String() + `
Examples:
  crewupload config set max-concurrent 4
  crewupload config set request-timeout 5m
  crewupload config set telemetry false`,
		Args: cobra.ExactArgs(2),
		RunE: runSet,
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	key := normalizeKey(args[0])
	if !config.IsValidUserFacingKey(key) {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "Error: '%s' is not a recognized configuration key\n\nValid configuration keys:\n", args[0])
		for _, k := range config.GetUserFacingKeys() {
			fmt.Fprintf(errOut, "  %s - %s\n", k, config.GetConfigKeyDescription(normalizeKey(k)))
		}
		fmt.Fprintf(errOut, "\nNote: the login token and session are managed by 'crewupload login' and 'crewupload session'\n")
		err := ui.NewValidationError(fmt.Errorf("invalid configuration key"))
		err.SilentExit = true
		return err
	}

	value, err := parseValue(key, args[1])
	if err != nil {
		return ui.NewValidationError(fmt.Errorf("invalid value for %s: %w", args[0], err))
	}

	viper.Set(config.GetEnvironmentPrefixedKey(key, config.GetEnvironment()), value)
	if err := viper.WriteConfig(); err != nil {
		return ui.NewConfigurationError(fmt.Errorf("failed to save config: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %v\n", args[0], value)
	return nil
}

// parseValue converts the raw argument to the type stored for key
func parseValue(key, raw string) (any, error) {
	switch key {
	case "skipversioncheck", "telemetry":
		return strconv.ParseBool(raw)
	case "maxconcurrent", "chunksizemb":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a whole number")
		}
		if n < 1 {
			return nil, fmt.Errorf("must be at least 1")
		}
		return n, nil
	case "requesttimeout", "reportinterval":
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a duration such as 30s or 5m")
		}
		return d.String(), nil
	case "loglevel":
		switch strings.ToLower(raw) {
		case "debug", "info", "warn", "error":
			return strings.ToLower(raw), nil
		}
		return nil, fmt.Errorf("expected debug, info, warn or error")
	default:
		return raw, nil
	}
}
