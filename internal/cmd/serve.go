package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muxcmd/muxcmd/internal/relay"
)

var serveListenAddr string

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: GroupRelay,
	Short:   "Run the WebSocket relay hub",
	Long: `Run the relay hub that routes command dispatches between clients.

Clients connect, identify with a client id, and exchange envelopes
addressed by id. The hub never interprets payloads, so any pair of
identified clients can talk through it.

Examples:
  muxcmd serve
  muxcmd serve --listen 0.0.0.0:8765`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Relay.ListenAddr
	if serveListenAddr != "" {
		addr = serveListenAddr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return relay.NewServer(addr, logger).ListenAndServe(ctx)
}
