// Package runner drives commands through an externally observable
// terminal session and recovers their exit codes.
//
// The runner has no pipe to a command's stdio. It appends a
// synchronization epilogue to every command it injects — an exit status
// echo plus a tmux wait-for signal — blocks until the signal fires,
// then reads the exit code back out of the session's scrollback. The
// sanitize package strips that bookkeeping from captured output.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/muxcmd/muxcmd/internal/policy"
	"github.com/muxcmd/muxcmd/internal/sanitize"
	"github.com/muxcmd/muxcmd/internal/tmux"
)

// ErrBusy is returned when a dispatch arrives while another is in
// flight. Requests are rejected immediately, never queued.
var ErrBusy = errors.New("a dispatch is already in flight")

// promptChars are characters that suggest the last scrollback line is a
// shell prompt awaiting input.
const promptChars = "$>#%➜"

// Defaults for the prompt readiness probe and post-wait settle delay.
const (
	defaultProbeAttempts = 10
	defaultProbeInterval = 200 * time.Millisecond
	defaultSettleDelay   = 100 * time.Millisecond
)

// Runner sequences command dispatches against one session. It owns the
// policy table, the token sequence, the busy flag, and the last-result
// slot — state the caller threads through explicitly rather than
// reaching for process-wide globals.
type Runner struct {
	session Session
	policy  *policy.Policy
	results *ResultStore
	decider Decider
	logger  *slog.Logger

	tokens tokenIssuer
	busy   atomic.Bool
	lock   *flock.Flock // optional cross-process dispatch guard

	probeAttempts int
	probeInterval time.Duration
	settleDelay   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithDecider sets the escalation decider. Default is AbortDecider.
func WithDecider(d Decider) Option {
	return func(r *Runner) { r.decider = d }
}

// WithLogger sets the logger for dispatch progress.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithResultStore replaces the default in-memory result store, e.g.
// with one mirroring results to disk.
func WithResultStore(s *ResultStore) Option {
	return func(r *Runner) { r.results = s }
}

// WithLockFile adds a flock-based guard so that two processes cannot
// dispatch into the same session concurrently. A held lock surfaces as
// ErrBusy, same as the in-process flag.
func WithLockFile(path string) Option {
	return func(r *Runner) { r.lock = flock.New(path) }
}

// WithProbe tunes the prompt readiness probe. Zero attempts disables it.
func WithProbe(attempts int, interval time.Duration) Option {
	return func(r *Runner) {
		r.probeAttempts = attempts
		r.probeInterval = interval
	}
}

// WithSettleDelay tunes the pause between the rendezvous returning and
// the transcript re-capture, covering the gap where tmux has signaled
// but the status line has not yet landed in scrollback.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Runner) { r.settleDelay = d }
}

// New creates a Runner for the given session and policy.
func New(session Session, pol *policy.Policy, opts ...Option) *Runner {
	r := &Runner{
		session:       session,
		policy:        pol,
		results:       NewResultStore(),
		decider:       AbortDecider,
		logger:        slog.Default(),
		probeAttempts: defaultProbeAttempts,
		probeInterval: defaultProbeInterval,
		settleDelay:   defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether a dispatch is currently in flight.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// LastOutput returns the sanitized output of the most recent dispatch.
func (r *Runner) LastOutput() (string, bool) {
	return r.results.Get()
}

// ClearResult empties the result slot.
func (r *Runner) ClearResult() {
	r.results.Clear()
}

// Execute runs a dispatch: every command of a batch strictly in order,
// stopping at the first failure (including an escalation resolved to
// abort). It returns overall success. The sanitized transcript is
// saved to the result store on completed and aborted dispatches alike.
//
// A second Execute while one is in flight fails immediately with
// ErrBusy. The busy flag clears on every return path.
func (r *Runner) Execute(ctx context.Context, d Dispatch) (bool, error) {
	if len(d.commands) == 0 {
		return false, fmt.Errorf("%w: empty dispatch", ErrMalformedCommand)
	}

	if !r.busy.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	defer r.busy.Store(false)

	if r.lock != nil {
		locked, err := r.lock.TryLock()
		if err != nil {
			return false, fmt.Errorf("acquiring dispatch lock: %w", err)
		}
		if !locked {
			return false, ErrBusy
		}
		defer func() { _ = r.lock.Unlock() }()
	}

	// Start each dispatch from a clean pane so the saved result only
	// contains this dispatch's output.
	if err := r.session.Clear(); err != nil {
		r.logger.Warn("clearing pane before dispatch", "error", err)
	}

	success := true
	var execErr error
	for _, command := range d.commands {
		ok, err := r.executeOne(ctx, command)
		if err != nil {
			success, execErr = false, err
			break
		}
		if !ok {
			r.logger.Warn("stopping dispatch after failed command", "command", command)
			success = false
			break
		}
	}

	// Save whatever the session shows, even for aborted dispatches:
	// partial output is exactly what the caller needs to diagnose.
	if lines, err := r.session.CaptureLines(); err == nil {
		r.results.Save(sanitize.CleanLines(lines))
	} else {
		r.logger.Warn("capturing final transcript", "error", err)
	}

	return success, execErr
}

// executeOne dispatches a single command and resolves its outcome.
// The returned error is reserved for infrastructure failures (send,
// capture, cancellation); command-level failure is the bool.
func (r *Runner) executeOne(ctx context.Context, command string) (bool, error) {
	r.waitPromptReady()

	tok := r.tokens.Issue()
	wrapped := fmt.Sprintf(`%s;echo "%s:$?";tmux wait-for -S "%s"`, command, tok.Marker, tok.Channel)

	r.logger.Info("dispatching command", "seq", tok.Sequence, "command", command)
	if err := r.session.SendKeys(wrapped); err != nil {
		return false, fmt.Errorf("sending command %q: %w", command, err)
	}

	if err := r.session.Wait(ctx, tok.Channel); err != nil {
		if errors.Is(err, tmux.ErrWaitTimeout) {
			// The command may still be running or may have completed
			// without the signal landing; either way the exit status
			// is unknowable from here.
			r.logger.Warn("rendezvous timed out", "seq", tok.Sequence, "command", command)
			return r.decider(Escalation{Command: command, Reason: UnresolvedExitStatus, ExitCode: -1}), nil
		}
		return false, fmt.Errorf("waiting for command %q: %w", command, err)
	}

	// The signal can fire a beat before the status line reaches
	// scrollback; give the pane a moment before capturing.
	if r.settleDelay > 0 {
		time.Sleep(r.settleDelay)
	}

	lines, err := r.session.CaptureLines()
	if err != nil {
		return false, fmt.Errorf("capturing transcript: %w", err)
	}

	code, found := findExitCode(lines, tok.Marker)
	if !found {
		r.logger.Warn("no status line found", "seq", tok.Sequence, "command", command)
		return r.decider(Escalation{Command: command, Reason: UnresolvedExitStatus, ExitCode: -1}), nil
	}

	if r.policy.Accepts(command, code) {
		return true, nil
	}

	r.logger.Warn("exit code rejected by policy", "seq", tok.Sequence, "command", command, "exit_code", code)
	return r.decider(Escalation{Command: command, Reason: PolicyRejectedExitStatus, ExitCode: code}), nil
}

// findExitCode scans the transcript from the end backward for the first
// line starting with marker and parses the integer after its final
// colon. Lines that look right but don't parse are skipped, not fatal.
func findExitCode(lines []string, marker string) (int, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, marker) {
			continue
		}
		idx := strings.LastIndex(trimmed, ":")
		if idx < 0 || idx == len(trimmed)-1 {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(trimmed[idx+1:]))
		if err != nil {
			continue
		}
		return code, true
	}
	return 0, false
}

// waitPromptReady polls the last scrollback line for prompt-looking
// characters before injecting. A shell that is still printing output
// would interleave our keystrokes with it. Not seeing a prompt is a
// warning, not a failure — some shells use prompts we don't recognize.
func (r *Runner) waitPromptReady() {
	for attempt := 0; attempt < r.probeAttempts; attempt++ {
		time.Sleep(r.probeInterval)
		lines, err := r.session.CaptureLines()
		if err != nil || len(lines) == 0 {
			continue
		}
		last := strings.TrimSpace(lines[len(lines)-1])
		if last != "" && strings.ContainsAny(last, promptChars) {
			// Small settle so a prompt mid-paint finishes loading.
			time.Sleep(r.settleDelay)
			return
		}
	}
	if r.probeAttempts > 0 {
		r.logger.Warn("prompt not detected before injection; continuing anyway")
	}
}
