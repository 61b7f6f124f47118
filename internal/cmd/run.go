package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muxcmd/muxcmd/internal/config"
	"github.com/muxcmd/muxcmd/internal/policy"
	"github.com/muxcmd/muxcmd/internal/runner"
	"github.com/muxcmd/muxcmd/internal/style"
	"github.com/muxcmd/muxcmd/internal/tmux"
)

var (
	runBatchFile string
	runQuiet     bool
	runYes       bool
)

var runCmd = &cobra.Command{
	Use:     "run [flags] [command]...",
	GroupID: GroupDispatch,
	Short:   "Dispatch commands into the tmux session",
	Long: `Dispatch one or more commands into the persistent tmux session and
print the sanitized output.

Each positional argument is one command. Multiple arguments form a
batch that runs strictly in order and stops at the first failure.

When a command's exit code cannot be confirmed (unknown code, or no
status line found), muxcmd asks whether to treat it as success. On a
non-interactive stdin the answer is always no.

Examples:
  muxcmd run 'ls -la'
  muxcmd run 'cd /tmp' 'ls'            # batch, stops on first failure
  muxcmd run --batch-file commands.txt
  muxcmd run --yes 'grep TODO *.go | head'`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runBatchFile, "batch-file", "", "Read commands from a file, one per line")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress the captured output")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Treat unconfirmed exit codes as success without asking")
}

func runRun(cmd *cobra.Command, args []string) error {
	commands := args
	if runBatchFile != "" {
		fromFile, err := readBatchFile(runBatchFile)
		if err != nil {
			return err
		}
		commands = append(fromFile, commands...)
	}
	if len(commands) == 0 {
		return fmt.Errorf("no commands given; pass them as arguments or via --batch-file")
	}

	var d runner.Dispatch
	var err error
	if len(commands) == 1 {
		d, err = runner.Single(commands[0])
	} else {
		d, err = runner.Batch(commands)
	}
	if err != nil {
		return err
	}

	r, err := buildRunner(chooseDecider())
	if err != nil {
		return err
	}

	ok, err := r.Execute(cmd.Context(), d)
	if err != nil {
		return err
	}

	if !runQuiet {
		if out, present := r.LastOutput(); present && out != "" {
			fmt.Println(out)
		}
	}

	if !ok {
		fmt.Printf("%s dispatch failed\n", style.ErrorPrefix)
		os.Exit(1)
	}
	fmt.Printf("%s done\n", style.SuccessPrefix)
	return nil
}

// buildRunner assembles the tmux session and runner from config.
func buildRunner(decider runner.Decider) (*runner.Runner, error) {
	tm := tmux.NewTmuxWithSocket(cfg.Session.Socket)
	if !tm.IsAvailable() {
		return nil, fmt.Errorf("tmux is not installed or not in PATH")
	}

	created, err := tm.EnsureSession(cfg.Session.Name, cfg.Session.StartDir)
	if err != nil {
		return nil, fmt.Errorf("preparing session %q: %w", cfg.Session.Name, err)
	}
	if created {
		fmt.Printf("%s created session %s\n", style.Dim.Render("●"), style.Bold.Render(cfg.Session.Name))
		if cfg.Session.HistoryLimit > 0 && cfg.Session.HistoryLimit != tmux.DefaultHistoryLimit {
			_ = tm.SetHistoryLimit(cfg.Session.Name, cfg.Session.HistoryLimit)
		}
	}

	session := runner.NewTmuxSession(tm, cfg.Session.Name, cfg.Session.WaitTimeout())

	pol, err := loadPolicy()
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithDecider(decider),
		runner.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
		runner.WithProbe(cfg.Probe.Attempts, cfg.Probe.Interval()),
		runner.WithSettleDelay(cfg.Probe.Settle()),
	}
	lockPath := config.LockPath(cfg.Session.Name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err == nil {
		opts = append(opts, runner.WithLockFile(lockPath))
	}
	if cfg.Result.MirrorPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Result.MirrorPath), 0755); err == nil {
			opts = append(opts, runner.WithResultStore(runner.NewResultStoreWithMirror(cfg.Result.MirrorPath)))
		}
	}

	return runner.New(session, pol, opts...), nil
}

// loadPolicy builds the exit-code policy, merging the optional rules
// file on top of the defaults.
func loadPolicy() (*policy.Policy, error) {
	pol := policy.New()
	if cfg.Policy.RulesFile == "" {
		return pol, nil
	}
	if _, err := os.Stat(cfg.Policy.RulesFile); os.IsNotExist(err) {
		return pol, nil
	}
	if err := pol.LoadRules(cfg.Policy.RulesFile); err != nil {
		return nil, fmt.Errorf("loading policy rules: %w", err)
	}
	return pol, nil
}

// chooseDecider picks the escalation decider for this invocation:
// --yes forces continue, an interactive stdin asks, anything else
// aborts.
func chooseDecider() runner.Decider {
	if runYes {
		return runner.ContinueDecider
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return runner.AbortDecider
	}
	return askDecider
}

// askDecider prompts y/N on the terminal for one escalation.
func askDecider(e runner.Escalation) bool {
	fmt.Printf("%s %s\n", style.WarningPrefix, e.Reason)
	fmt.Printf("  command: %s\n", style.Bold.Render(e.Command))
	if e.Reason == runner.PolicyRejectedExitStatus {
		fmt.Printf("  exit code: %s\n", style.Error.Render(fmt.Sprintf("%d", e.ExitCode)))
	}
	fmt.Print("Treat as success and continue? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// readBatchFile loads one command per line, skipping blanks and #
// comments.
func readBatchFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var commands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, nil
}
