package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/tui"
)

var shellCmd = &cobra.Command{
	Use:     "shell",
	GroupID: GroupLocal,
	Short:   "Open an embedded sandboxed shell",
	Long: `Open an embedded shell running on a pseudo-terminal with a
whitelisted environment. The host's dotfiles, aliases, and prompt
machinery are not loaded, so the session behaves the same on every
machine.

Ctrl+C quits.`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	model, err := tui.NewShell()
	if err != nil {
		return err
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running shell ui: %w", err)
	}
	return nil
}
