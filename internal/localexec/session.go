package localexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Session is a stateful shell-like session for local execution. Each
// command runs as its own child process, so shell state does not
// persist between commands; the session compensates by tracking the
// working directory itself and interpreting `cd` in-process.
type Session struct {
	cwd      string
	executor *Executor
	out      io.Writer
}

// NewSession starts a session rooted at startDir. An empty startDir
// uses the process working directory.
func NewSession(startDir string) (*Session, error) {
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		startDir = wd
	}
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("start directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("start directory %s is not a directory", abs)
	}
	return &Session{cwd: abs, executor: NewExecutor(), out: os.Stdout}, nil
}

// SetOutput redirects the session's diagnostics and streamed command
// output. Defaults to stdout.
func (s *Session) SetOutput(w io.Writer) {
	s.out = w
}

// Cwd returns the session's current working directory.
func (s *Session) Cwd() string {
	return s.cwd
}

// Prompt renders a shell-style prompt for the current directory, with
// the home directory abbreviated to ~.
func (s *Session) Prompt() string {
	display := s.cwd
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(s.cwd, home) {
		display = "~" + s.cwd[len(home):]
	}
	return display + " $ "
}

// Execute runs one command and reports success. `cd` is handled by the
// session itself; everything else goes through the executor with the
// session's cwd. Blank input is a no-op success.
func (s *Session) Execute(ctx context.Context, command string, stream bool) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return true
	}

	if target, ok := strings.CutPrefix(command, "cd "); ok {
		return s.changeDir(strings.TrimSpace(target))
	}
	if command == "cd" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(s.out, "cd: %v\n", err)
			return false
		}
		return s.changeDir(home)
	}

	s.executor.Reset(command, s.cwd)
	if stream {
		s.executor.Stream(s.out)
	} else {
		s.executor.Stream(nil)
	}
	res, err := s.executor.Run(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return false
	}
	if !res.Success() && !stream && res.Stderr != "" {
		fmt.Fprint(s.out, res.Stderr)
	}
	return res.Success()
}

// ExecuteBatch runs commands strictly in order, stopping at the first
// failure. It reports whether every command succeeded.
func (s *Session) ExecuteBatch(ctx context.Context, commands []string, stream bool) bool {
	for i, command := range commands {
		if !s.Execute(ctx, command, stream) {
			fmt.Fprintf(s.out, "batch aborted at step %d/%d: %s\n", i+1, len(commands), command)
			return false
		}
	}
	return true
}

// changeDir resolves target against the current directory and moves
// the session there if it exists.
func (s *Session) changeDir(target string) bool {
	if strings.HasPrefix(target, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(s.out, "cd: %v\n", err)
			return false
		}
		target = home + target[1:]
	}
	next := target
	if !filepath.IsAbs(next) {
		next = filepath.Join(s.cwd, next)
	}
	next = filepath.Clean(next)
	info, err := os.Stat(next)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(s.out, "cd: no such file or directory: %s\n", target)
		return false
	}
	s.cwd = next
	return true
}
