// Package tmux provides a wrapper for tmux session operations via subprocess.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Common errors
var (
	ErrNoServer           = errors.New("no tmux server running")
	ErrSessionExists      = errors.New("session already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSessionName = errors.New("invalid session name")
	ErrWaitTimeout        = errors.New("timed out waiting for channel signal")
)

// validSessionNameRe validates session names to prevent shell injection
var validSessionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateSessionName checks that a session name contains only safe characters.
// Returns ErrInvalidSessionName for dots, colons, or other characters that
// cause tmux to silently fail or produce cryptic errors.
func validateSessionName(name string) error {
	if name == "" || !validSessionNameRe.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidSessionName, name, validSessionNameRe.String())
	}
	return nil
}

// DefaultHistoryLimit is the scrollback depth configured on sessions
// created by this wrapper. Exit-code recovery scans the full scrollback,
// so it must be deep enough to hold a whole dispatch's output.
const DefaultHistoryLimit = 50000

// DefaultDebounceMs is the pause between pasting command text and
// sending Enter, so Enter cannot arrive before the paste is processed.
const DefaultDebounceMs = 100

// Tmux wraps tmux operations.
type Tmux struct {
	socketName string // tmux socket name (-L flag), empty = default socket
}

// NewTmux creates a Tmux wrapper using the default socket.
func NewTmux() *Tmux {
	return &Tmux{}
}

// NewTmuxWithSocket creates a Tmux wrapper that targets a named socket.
// This connects to an isolated tmux server, separate from the user's
// default server. Primarily used in tests to prevent session name
// collisions and keystroke leaks into the user's own sessions.
func NewTmuxWithSocket(socket string) *Tmux {
	return &Tmux{socketName: socket}
}

// run executes a tmux command and returns stdout.
// All commands include the -u flag for UTF-8 support regardless of locale.
func (t *Tmux) run(args ...string) (string, error) {
	return t.runContext(context.Background(), args...)
}

// runContext is run with caller-controlled cancellation. Used by WaitFor,
// where the command blocks until a signal is raised inside the session.
func (t *Tmux) runContext(ctx context.Context, args ...string) (string, error) {
	// Global flags must come before the subcommand.
	allArgs := []string{"-u"}
	if t.socketName != "" {
		allArgs = append(allArgs, "-L", t.socketName)
	}
	allArgs = append(allArgs, args...)
	cmd := exec.CommandContext(ctx, "tmux", allArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", t.wrapError(err, stderr.String(), args)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// wrapError wraps tmux errors with context.
func (t *Tmux) wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "no current target") ||
		strings.Contains(stderr, "server exited unexpectedly") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "duplicate session") {
		return ErrSessionExists
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// IsAvailable checks if tmux is installed.
func (t *Tmux) IsAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// HasSession checks if a session exists.
func (t *Tmux) HasSession(name string) (bool, error) {
	if err := validateSessionName(name); err != nil {
		return false, err
	}
	_, err := t.run("has-session", "-t", name)
	if err != nil {
		// has-session exits nonzero for unknown sessions and for a
		// missing server alike; both just mean "no".
		return false, nil
	}
	return true, nil
}

// NewSession creates a new detached tmux session with the default
// history limit applied, so scrollback capture covers whole dispatches.
func (t *Tmux) NewSession(name, workDir string) error {
	if err := validateSessionName(name); err != nil {
		return err
	}
	args := []string{"new-session", "-d", "-s", name}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	if _, err := t.run(args...); err != nil {
		return err
	}
	// tmux 3.3+ sets window-size=manual on detached sessions (no client
	// present), which locks the window at 80x24 even after a client
	// attaches. Override so the window tracks the attaching client.
	_, _ = t.run("set-option", "-wt", name, "window-size", "latest")
	_, _ = t.run("set-option", "-t", name, "history-limit", fmt.Sprintf("%d", DefaultHistoryLimit))
	return nil
}

// EnsureSession attaches to an existing session or creates a fresh one.
// Returns true if the session was newly created.
func (t *Tmux) EnsureSession(name, workDir string) (bool, error) {
	exists, err := t.HasSession(name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := t.NewSession(name, workDir); err != nil {
		// Lost the create race to another process; that's fine.
		if errors.Is(err, ErrSessionExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetHistoryLimit overrides the session's scrollback depth.
func (t *Tmux) SetHistoryLimit(name string, limit int) error {
	if err := validateSessionName(name); err != nil {
		return err
	}
	_, err := t.run("set-option", "-t", name, "history-limit", fmt.Sprintf("%d", limit))
	return err
}

// KillSession terminates a session.
func (t *Tmux) KillSession(name string) error {
	if err := validateSessionName(name); err != nil {
		return err
	}
	_, err := t.run("kill-session", "-t", name)
	return err
}

// SendKeys sends text to a session followed by Enter, with a debounce
// between paste and Enter. Text is sent in literal mode (-l) so shell
// metacharacters arrive as typed.
func (t *Tmux) SendKeys(session, keys string) error {
	return t.SendKeysDebounced(session, keys, DefaultDebounceMs)
}

// SendKeysDebounced sends keystrokes with a configurable delay before Enter.
func (t *Tmux) SendKeysDebounced(session, keys string, debounceMs int) error {
	if _, err := t.run("send-keys", "-t", session, "-l", keys); err != nil {
		return err
	}
	if debounceMs > 0 {
		time.Sleep(time.Duration(debounceMs) * time.Millisecond)
	}
	// Send Enter separately - more reliable than appending to send-keys
	_, err := t.run("send-keys", "-t", session, "Enter")
	return err
}

// SendKeysRaw sends keystrokes without adding Enter.
func (t *Tmux) SendKeysRaw(session, keys string) error {
	_, err := t.run("send-keys", "-t", session, keys)
	return err
}

// CapturePane captures the last N lines of a pane.
func (t *Tmux) CapturePane(session string, lines int) (string, error) {
	return t.run("capture-pane", "-p", "-t", session, "-S", fmt.Sprintf("-%d", lines))
}

// CapturePaneAll captures all scrollback history.
func (t *Tmux) CapturePaneAll(session string) (string, error) {
	return t.run("capture-pane", "-p", "-t", session, "-S", "-")
}

// CapturePaneLines captures the last N lines of a pane as a slice.
// Pass a negative count to capture the full scrollback.
func (t *Tmux) CapturePaneLines(session string, lines int) ([]string, error) {
	var out string
	var err error
	if lines < 0 {
		out, err = t.CapturePaneAll(session)
	} else {
		out, err = t.CapturePane(session, lines)
	}
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ClearPane clears the visible pane and its scrollback history, so the
// next capture contains only output from the upcoming dispatch.
func (t *Tmux) ClearPane(session string) error {
	if err := t.SendKeys(session, "clear"); err != nil {
		return err
	}
	// Give the shell a beat to process clear before dropping history.
	time.Sleep(200 * time.Millisecond)
	_, err := t.run("clear-history", "-t", session)
	return err
}

// WaitFor blocks until a signal is raised on the named channel from
// inside a session (`tmux wait-for -S <channel>`), or until ctx is
// done. A zero timeout blocks indefinitely, matching tmux's own
// wait-for semantics; a positive timeout returns ErrWaitTimeout.
func (t *Tmux) WaitFor(ctx context.Context, channel string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := t.runContext(ctx, "wait-for", channel)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, channel, timeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Signal raises a signal on the named channel from outside the session.
// The injected epilogue normally does this from inside the pane; this
// is an escape hatch for unblocking a stuck WaitFor by hand.
func (t *Tmux) Signal(channel string) error {
	_, err := t.run("wait-for", "-S", channel)
	return err
}

// AttachCommand returns the command a user can run in another terminal
// to watch the session live.
func (t *Tmux) AttachCommand(session string) string {
	if t.socketName != "" {
		return fmt.Sprintf("tmux -L %s attach -t %s", t.socketName, session)
	}
	return fmt.Sprintf("tmux attach -t %s", session)
}

// InsideTmux reports whether the current process runs inside a tmux client.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}
