// Package cmd implements the muxcmd CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muxcmd/muxcmd/internal/config"
	"github.com/muxcmd/muxcmd/internal/style"
)

// Command groups for help output.
const (
	GroupDispatch = "dispatch"
	GroupRelay    = "relay"
	GroupLocal    = "local"
)

var (
	configPath  string
	sessionName string
	socketName  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "muxcmd",
	Short: "Run shell commands through a persistent tmux session",
	Long: `muxcmd drives shell commands through a long-lived tmux session,
recovers each command's exit code from the session's scrollback, and
strips its own bookkeeping back out of the captured output.

The session survives between invocations, so state like the working
directory, environment, and running processes carries across commands.
Commands can be dispatched locally or relayed from another machine
over WebSocket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			style.NoColor()
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if sessionName != "" {
			cfg.Session.Name = sessionName
		}
		if socketName != "" {
			cfg.Session.Socket = socketName
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupDispatch, Title: "Dispatch Commands:"},
		&cobra.Group{ID: GroupRelay, Title: "Relay Commands:"},
		&cobra.Group{ID: GroupLocal, Title: "Local Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/muxcmd/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&sessionName, "session", "s", "", "tmux session name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&socketName, "socket", "", "tmux socket name for an isolated server")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
