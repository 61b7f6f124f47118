package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/relay"
	"github.com/muxcmd/muxcmd/internal/runner"
	"github.com/muxcmd/muxcmd/internal/style"
)

var (
	agentURL string
	agentID  string
)

var agentCmd = &cobra.Command{
	Use:     "agent",
	GroupID: GroupRelay,
	Short:   "Serve the local tmux session to the relay",
	Long: `Connect to the relay hub and execute command dispatches arriving
over it in the local tmux session.

Peers address the agent by its client id. While a dispatch is in
flight further requests are rejected immediately, never queued.
Escalations are resolved to abort: an unattended agent never guesses
that an unconfirmed command succeeded.

Examples:
  muxcmd agent
  muxcmd agent --url ws://relay.example:8765 --id build-box`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().StringVar(&agentURL, "url", "", "Relay URL (overrides config)")
	agentCmd.Flags().StringVar(&agentID, "id", "", "Client id on the relay (overrides config)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	url := cfg.Relay.URL
	if agentURL != "" {
		url = agentURL
	}
	id := cfg.Relay.ClientID
	if agentID != "" {
		id = agentID
	}
	if id == "" {
		id = "muxcmd-" + uuid.NewString()[:8]
	}

	r, err := buildRunner(runner.AbortDecider)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s agent %s serving session %s via %s\n",
		style.Dim.Render("●"), style.Bold.Render(id),
		style.Bold.Render(cfg.Session.Name), url)

	return relay.NewAgent(url, id, r, logger).Run(ctx)
}
