// Package localexec runs commands as local child processes through the
// shell. It is the in-process counterpart to the tmux dispatch path:
// same batch semantics, but with real pipes to the command's stdio
// instead of scrollback capture.
package localexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotConfigured is returned by Run when Reset has not been called
// since construction or the last Run.
var ErrNotConfigured = errors.New("executor has no command; call Reset first")

// Result captures one command's outcome. Startup failures (shell not
// found, pipe errors) are folded in with ExitCode -1 and Err set, so a
// Result is always produced.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      string
}

// Success reports a clean zero exit with no startup failure.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Err == ""
}

// Executor runs one command at a time through `bash -c`. It is
// reusable: Reset rearms it for the next command without reallocating,
// which matters for large batches.
type Executor struct {
	command string
	dir     string

	// stream mirrors output line by line to this writer as the command
	// runs, with [stdout]/[stderr] prefixes. Nil disables mirroring.
	stream io.Writer
}

// NewExecutor creates an unarmed executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Reset arms the executor with a new command and working directory.
// It returns the executor for chaining: Reset(...).Run(ctx).
func (e *Executor) Reset(command, dir string) *Executor {
	e.command = command
	e.dir = dir
	return e
}

// Stream sets the mirror writer for subsequent runs. Pass nil to
// capture silently.
func (e *Executor) Stream(w io.Writer) *Executor {
	e.stream = w
	return e
}

// Run executes the armed command and returns its Result. The error
// return is reserved for misuse (ErrNotConfigured) and context
// cancellation; command failures live in the Result.
//
// Both output streams are drained by concurrent readers that are
// joined before the result is finalized, so Stdout and Stderr are
// always complete. No ordering is guaranteed between the two streams.
func (e *Executor) Run(ctx context.Context) (Result, error) {
	if e.command == "" {
		return Result{}, ErrNotConfigured
	}

	res := Result{Command: e.command}

	cmd := exec.CommandContext(ctx, "bash", "-c", e.command)
	cmd.Dir = e.dir
	cmd.Env = os.Environ()
	cmd.Stdin = strings.NewReader("")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.ExitCode, res.Err = -1, fmt.Sprintf("stdout pipe: %v", err)
		return res, nil
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		res.ExitCode, res.Err = -1, fmt.Sprintf("stderr pipe: %v", err)
		return res, nil
	}

	if err := cmd.Start(); err != nil {
		res.ExitCode, res.Err = -1, fmt.Sprintf("starting command: %v", err)
		return res, nil
	}

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go e.drain(stdout, &outBuf, "[stdout]", &wg)
	go e.drain(stderr, &errBuf, "[stderr]", &wg)
	wg.Wait()

	err = cmd.Wait()
	res.Stdout = outBuf.String()
	res.Stderr = errBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case ctx.Err() != nil:
			res.ExitCode, res.Err = -1, ctx.Err().Error()
			return res, ctx.Err()
		default:
			res.ExitCode, res.Err = -1, err.Error()
		}
	}
	return res, nil
}

// drain copies one stream into buf line by line, mirroring to the
// stream writer when one is set.
func (e *Executor) drain(r io.Reader, buf *strings.Builder, prefix string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if e.stream != nil {
			fmt.Fprintf(e.stream, "%s %s\n", prefix, line)
		}
	}
}
