package ui

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// DisplayConfigContextKey is the key used to store DisplayConfig in context
type DisplayConfigContextKey struct{}

// GetDisplayConfigContextKey returns the key used to store DisplayConfig in context
func GetDisplayConfigContextKey() DisplayConfigContextKey {
	return DisplayConfigContextKey{}
}

// DisplayConfig contains display-related configuration
type DisplayConfig struct {
	DisableAnimation bool
	IsInteractive    bool
}

// SimpleOutput reports whether progress is printed as plain lines instead of the live view
func (d DisplayConfig) SimpleOutput() bool {
	return !d.IsInteractive || d.DisableAnimation
}

// terminalState is what NewDisplayConfig detects about the process
type terminalState struct {
	stdoutIsTTY              bool
	stderrRedirectedToStdout bool
	noColorEnv               bool
}

// displayFlags are the persistent flags that affect rendering
type displayFlags struct {
	noColor bool
	noAnsi  bool
	plain   bool
	verbose bool
}

// resolveDisplay decides between the live view and plain output.
// Verbose logs only force plain output when they would land on the same stream as the view.
func resolveDisplay(flags displayFlags, term terminalState) DisplayConfig {
	disableAnimation := flags.noColor || flags.noAnsi || flags.plain || term.noColorEnv
	verboseForcesSimple := flags.verbose && term.stderrRedirectedToStdout

	return DisplayConfig{
		DisableAnimation: disableAnimation,
		IsInteractive:    term.stdoutIsTTY && !disableAnimation && !verboseForcesSimple,
	}
}

// NewDisplayConfig extracts display options from persistent flags and TTY detection
func NewDisplayConfig(cmd *cobra.Command, verbose bool) (DisplayConfig, error) {
	flags := displayFlags{verbose: verbose}
	flags.noColor, _ = cmd.Flags().GetBool("no-color")
	flags.noAnsi, _ = cmd.Flags().GetBool("no-ansi")
	flags.plain, _ = cmd.Flags().GetBool("plain")

	term := terminalState{
		stdoutIsTTY: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		noColorEnv:  os.Getenv("NO_COLOR") != "",
	}
	if stat1, err1 := os.Stdout.Stat(); err1 == nil {
		if stat2, err2 := os.Stderr.Stat(); err2 == nil {
			term.stderrRedirectedToStdout = os.SameFile(stat1, stat2)
		}
	}

	opts := resolveDisplay(flags, term)

	slog.Debug("Display options determined",
		"command", cmd.Name(),
		"flags", fmt.Sprintf("%+v", flags),
		"terminal", fmt.Sprintf("%+v", term),
		"is-interactive", opts.IsInteractive,
		"simple-output", opts.SimpleOutput(),
	)

	return opts, nil
}

// GetDisplayConfigFromContext retrieves DisplayConfig from the command context
func GetDisplayConfigFromContext(cmd *cobra.Command) (DisplayConfig, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return DisplayConfig{}, fmt.Errorf("command context is nil")
	}

	opts, ok := ctx.Value(GetDisplayConfigContextKey()).(DisplayConfig)
	if !ok {
		return DisplayConfig{}, fmt.Errorf("display options not found in context")
	}

	return opts, nil
}
