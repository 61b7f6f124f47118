package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/localexec"
	"github.com/muxcmd/muxcmd/internal/style"
)

var (
	execDir       string
	execBatchFile string
	execNoStream  bool
)

var execCmd = &cobra.Command{
	Use:     "exec [flags] [command]...",
	GroupID: GroupLocal,
	Short:   "Run commands as local child processes",
	Long: `Run commands directly as local child processes, without a tmux
session. Each command runs through the shell with its output streamed
as it happens; a batch stops at the first failure.

Because each command is its own process, shell state does not persist
between them — except the working directory, which the session tracks
itself ('cd' is handled in-process).

Examples:
  muxcmd exec 'make test'
  muxcmd exec --dir /srv/app 'git pull' 'make deploy'
  muxcmd exec --batch-file release-steps.txt`,
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVarP(&execDir, "dir", "d", "", "Starting working directory")
	execCmd.Flags().StringVar(&execBatchFile, "batch-file", "", "Read commands from a file, one per line")
	execCmd.Flags().BoolVar(&execNoStream, "no-stream", false, "Capture output instead of streaming it")
}

func runExec(cmd *cobra.Command, args []string) error {
	commands := args
	if execBatchFile != "" {
		fromFile, err := readBatchFile(execBatchFile)
		if err != nil {
			return err
		}
		commands = append(fromFile, commands...)
	}
	if len(commands) == 0 {
		return fmt.Errorf("no commands given; pass them as arguments or via --batch-file")
	}

	session, err := localexec.NewSession(execDir)
	if err != nil {
		return err
	}

	if session.ExecuteBatch(cmd.Context(), commands, !execNoStream) {
		fmt.Printf("%s done\n", style.SuccessPrefix)
		return nil
	}
	fmt.Printf("%s batch failed\n", style.ErrorPrefix)
	os.Exit(1)
	return nil
}
