package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/runner"
	"github.com/muxcmd/muxcmd/internal/style"
)

var resultCmd = &cobra.Command{
	Use:     "result",
	GroupID: GroupDispatch,
	Short:   "Print the last dispatch's sanitized output",
	Long: `Print the sanitized output of the most recent dispatch, read from
the on-disk result mirror. Works across processes: a dispatch run by
the relay agent is visible here too.`,
	RunE: runResult,
}

func init() {
	rootCmd.AddCommand(resultCmd)
}

func runResult(cmd *cobra.Command, args []string) error {
	if cfg.Result.MirrorPath == "" {
		return fmt.Errorf("no result mirror configured (result.mirror_path)")
	}
	out, ok := runner.ReadMirror(cfg.Result.MirrorPath)
	if !ok {
		fmt.Println(style.Dim.Render("no result recorded yet"))
		return nil
	}
	fmt.Println(out)
	return nil
}
