package ui

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayConfig_SimpleOutput(t *testing.T) {
	tcs := []struct {
		name     string
		opts     DisplayConfig
		expected bool
	}{
		{name: "interactive with animation", opts: DisplayConfig{IsInteractive: true}, expected: false},
		{name: "interactive without animation", opts: DisplayConfig{IsInteractive: true, DisableAnimation: true}, expected: true},
		{name: "piped", opts: DisplayConfig{}, expected: true},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.opts.SimpleOutput())
		})
	}
}

func Test_resolveDisplay(t *testing.T) {
	tty := terminalState{stdoutIsTTY: true}

	tcs := []struct {
		name        string
		flags       displayFlags
		term        terminalState
		interactive bool
		disabled    bool
	}{
		{name: "terminal", term: tty, interactive: true},
		{name: "piped output", term: terminalState{}, interactive: false},
		{name: "--no-color", flags: displayFlags{noColor: true}, term: tty, disabled: true},
		{name: "--no-ansi", flags: displayFlags{noAnsi: true}, term: tty, disabled: true},
		{name: "--plain", flags: displayFlags{plain: true}, term: tty, disabled: true},
		{name: "NO_COLOR", term: terminalState{stdoutIsTTY: true, noColorEnv: true}, disabled: true},
		{
			name:        "verbose with separate stderr keeps the view",
			flags:       displayFlags{verbose: true},
			term:        tty,
			interactive: true,
		},
		{
			name:  "verbose with stderr on stdout",
			flags: displayFlags{verbose: true},
			term:  terminalState{stdoutIsTTY: true, stderrRedirectedToStdout: true},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			opts := resolveDisplay(tc.flags, tc.term)
			assert.Equal(t, tc.interactive, opts.IsInteractive)
			assert.Equal(t, tc.disabled, opts.DisableAnimation)
		})
	}
}

func TestGetDisplayConfigFromContext(t *testing.T) {
	t.Run("stored config", func(t *testing.T) {
		cmd := &cobra.Command{}
		want := DisplayConfig{IsInteractive: true}
		cmd.SetContext(context.WithValue(context.Background(), GetDisplayConfigContextKey(), want))

		got, err := GetDisplayConfigFromContext(cmd)

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing config", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())

		_, err := GetDisplayConfigFromContext(cmd)

		require.Error(t, err)
	})
}
