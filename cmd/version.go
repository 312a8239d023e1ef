package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "prompter %s\n", Version)
		fmt.Fprintf(out, "  Commit:  %s\n", GitCommit)
		fmt.Fprintf(out, "  Built:   %s\n", BuildTime)
	},
}
