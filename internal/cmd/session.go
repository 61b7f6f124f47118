package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/style"
	"github.com/muxcmd/muxcmd/internal/tmux"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: GroupDispatch,
	Short:   "Manage the dispatch session",
}

var sessionAttachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Print the command to watch the session live",
	Long: `Print the tmux command that attaches to the dispatch session, so a
second terminal can watch commands execute in real time.`,
	RunE: runSessionAttach,
}

var sessionKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Terminate the dispatch session",
	RunE:  runSessionKill,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionAttachCmd)
	sessionCmd.AddCommand(sessionKillCmd)
}

func runSessionAttach(cmd *cobra.Command, args []string) error {
	tm := tmux.NewTmuxWithSocket(cfg.Session.Socket)
	exists, err := tm.HasSession(cfg.Session.Name)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Printf("%s session %s does not exist yet; `muxcmd run` creates it\n",
			style.Dim.Render("○"), style.Bold.Render(cfg.Session.Name))
		return nil
	}
	fmt.Printf("%s watch the session with:\n\n  %s\n",
		style.Dim.Render("●"), style.Bold.Render(tm.AttachCommand(cfg.Session.Name)))
	return nil
}

func runSessionKill(cmd *cobra.Command, args []string) error {
	tm := tmux.NewTmuxWithSocket(cfg.Session.Socket)
	if err := tm.KillSession(cfg.Session.Name); err != nil {
		return err
	}
	fmt.Printf("%s session %s terminated\n", style.SuccessPrefix, style.Bold.Render(cfg.Session.Name))
	return nil
}
