package runner

import (
	"context"
	"time"

	"github.com/muxcmd/muxcmd/internal/tmux"
)

// Session is the terminal the runner drives. It can only write
// keystrokes, read back what the terminal has displayed, and block on a
// named rendezvous channel — there is no pipe to the command's stdio.
type Session interface {
	// SendKeys writes one logical input line (text plus Enter).
	SendKeys(keys string) error

	// CaptureLines returns the session's full scrollback as lines.
	CaptureLines() ([]string, error)

	// Wait blocks until the named channel is signaled from inside the
	// session, ctx is done, or the session's configured wait timeout
	// expires (tmux.ErrWaitTimeout).
	Wait(ctx context.Context, channel string) error

	// Clear resets the visible pane and scrollback.
	Clear() error
}

// TmuxSession adapts one named pane of the tmux wrapper to the Session
// interface.
type TmuxSession struct {
	tm          *tmux.Tmux
	name        string
	waitTimeout time.Duration
}

// NewTmuxSession wraps the named tmux session. A zero waitTimeout means
// Wait blocks until signaled, the baseline behavior.
func NewTmuxSession(tm *tmux.Tmux, name string, waitTimeout time.Duration) *TmuxSession {
	return &TmuxSession{tm: tm, name: name, waitTimeout: waitTimeout}
}

// Name returns the tmux session name.
func (s *TmuxSession) Name() string {
	return s.name
}

func (s *TmuxSession) SendKeys(keys string) error {
	return s.tm.SendKeys(s.name, keys)
}

func (s *TmuxSession) CaptureLines() ([]string, error) {
	return s.tm.CapturePaneLines(s.name, -1)
}

func (s *TmuxSession) Wait(ctx context.Context, channel string) error {
	return s.tm.WaitFor(ctx, channel, s.waitTimeout)
}

func (s *TmuxSession) Clear() error {
	return s.tm.ClearPane(s.name)
}
