package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scriptbox %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  build date: %s\n", buildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:         %s\n", runtime.Version())
		},
	}
}
