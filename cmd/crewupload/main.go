package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/turbo360/crewupload/internal/commands"
	"github.com/turbo360/crewupload/internal/ui"
	crewBugsnag "github.com/turbo360/crewupload/pkg/bugsnag"
)

func main() {
	if err := crewBugsnag.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize error tracking: %v\n", err)
	}

	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	defer crewBugsnag.NotifyOnPanic(ctx)

	rootCmd := commands.NewRootCmd()
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var uiErr *ui.UIError
	isUIError := errors.As(err, &uiErr)

	switch {
	case strings.HasPrefix(err.Error(), "unknown command"):
		// Usage is suppressed on commands, so show it here
		_ = rootCmd.Usage()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, err)
	case isUIError && uiErr.SilentExit:
		// Already rendered by the view
	default:
		fmt.Fprint(os.Stderr, ui.FormatError(err))
	}

	if isUIError && (uiErr.Type == ui.ErrorTypeInternal || uiErr.Type == ui.ErrorTypeConfiguration) {
		if cmd != nil {
			crewBugsnag.SetCommandContext(cmd.CommandPath(), os.Args[1:])
		}
		crewBugsnag.NotifyError(ctx, err)
	}

	return ui.ExitCode(err)
}
