package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbo360/crewupload/internal/version"
)

// NewVersionCmd prints the build information
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
		},
	}
}
