package localexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRequiresReset(t *testing.T) {
	e := NewExecutor()
	if _, err := e.Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Run() error = %v, want ErrNotConfigured", err)
	}
}

func TestRunCapturesStreams(t *testing.T) {
	e := NewExecutor()
	res, err := e.Reset("echo out; echo err >&2", "").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() {
		t.Errorf("Success() = false, result = %+v", res)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRunReportsExitCode(t *testing.T) {
	e := NewExecutor()
	res, err := e.Reset("exit 3", "").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 || res.Success() {
		t.Errorf("got ExitCode %d, Success %v; want 3, false", res.ExitCode, res.Success())
	}
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "here.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	e := NewExecutor()
	res, err := e.Reset("ls", dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(res.Stdout, "here.txt") {
		t.Errorf("Stdout = %q, want it to list here.txt", res.Stdout)
	}
}

func TestExecutorReuse(t *testing.T) {
	e := NewExecutor()
	first, err := e.Reset("echo one", "").Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := e.Reset("echo two", "").Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if first.Stdout != "one\n" || second.Stdout != "two\n" {
		t.Errorf("reuse leaked state: first %q, second %q", first.Stdout, second.Stdout)
	}
}

func TestRunStreamsWithPrefixes(t *testing.T) {
	var mirror strings.Builder
	e := NewExecutor().Stream(&mirror)
	res, err := e.Reset("echo out; echo err >&2", "").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Errorf("capture broken while streaming: %+v", res)
	}
	got := mirror.String()
	if !strings.Contains(got, "[stdout] out") || !strings.Contains(got, "[stderr] err") {
		t.Errorf("mirror = %q, want prefixed lines for both streams", got)
	}
}
