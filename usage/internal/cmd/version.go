package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by the build process using ldflags.
var (
	BinaryName = "fsstrata"
	Version    = "local-build"
	Commit     = "unknown"
	BuildTime  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fsstrata version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s | Commit %s | Built: %s\n", Version, Commit, BuildTime)
	},
}
