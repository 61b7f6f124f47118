package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the muxcmd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("muxcmd %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
