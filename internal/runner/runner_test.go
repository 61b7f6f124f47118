package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/muxcmd/muxcmd/internal/policy"
	"github.com/muxcmd/muxcmd/internal/tmux"
)

// step scripts how the fake session reacts to one injected command.
type step struct {
	output     []string
	exitCode   int
	omitStatus bool
	sendErr    error
	waitErr    error
}

// fakeSession emulates a shell pane: every injected line is echoed into
// the transcript, followed by the scripted output and status line.
type fakeSession struct {
	transcript []string
	steps      []step
	stepIdx    int
	sent       []string
	waited     []string
	waitGate   chan struct{} // when set, Wait blocks until closed
}

func newFakeSession(steps ...step) *fakeSession {
	return &fakeSession{transcript: []string{"$"}, steps: steps}
}

// markerOf extracts the marker name from an injected wrapped command.
func markerOf(keys string) string {
	start := strings.Index(keys, `;echo "`)
	end := strings.Index(keys, `:$?`)
	if start < 0 || end < 0 {
		return ""
	}
	return keys[start+len(`;echo "`) : end]
}

func (f *fakeSession) SendKeys(keys string) error {
	f.sent = append(f.sent, keys)

	var st step
	if f.stepIdx < len(f.steps) {
		st = f.steps[f.stepIdx]
		f.stepIdx++
	}
	if st.sendErr != nil {
		return st.sendErr
	}

	f.transcript = append(f.transcript, "$ "+keys)
	f.transcript = append(f.transcript, st.output...)
	if !st.omitStatus {
		f.transcript = append(f.transcript, fmt.Sprintf("%s:%d", markerOf(keys), st.exitCode))
	}
	f.transcript = append(f.transcript, "$")
	return nil
}

func (f *fakeSession) CaptureLines() ([]string, error) {
	return append([]string(nil), f.transcript...), nil
}

func (f *fakeSession) Wait(ctx context.Context, channel string) error {
	f.waited = append(f.waited, channel)
	if f.waitGate != nil {
		select {
		case <-f.waitGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n := len(f.waited); n > 0 && n-1 < len(f.steps) {
		return f.steps[n-1].waitErr
	}
	return nil
}

func (f *fakeSession) Clear() error {
	f.transcript = []string{"$"}
	return nil
}

// newTestRunner builds a runner with fast probe/settle timings.
func newTestRunner(s Session, pol *policy.Policy, opts ...Option) *Runner {
	base := []Option{
		WithProbe(1, time.Millisecond),
		WithSettleDelay(0),
	}
	return New(s, pol, append(base, opts...)...)
}

func TestExecuteSingleSuccess(t *testing.T) {
	fs := newFakeSession(step{output: []string{"hi"}, exitCode: 0})
	r := newTestRunner(fs, policy.New())

	d, err := Single("echo hi")
	if err != nil {
		t.Fatalf("Single() error = %v", err)
	}
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !ok {
		t.Fatal("Execute() = false, want true")
	}

	if len(fs.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(fs.sent))
	}
	want := `echo hi;echo "TMUX_CMD_EXIT_CODE_0:$?";tmux wait-for -S "tmux-wait-0"`
	if fs.sent[0] != want {
		t.Errorf("injected = %q, want %q", fs.sent[0], want)
	}
	if len(fs.waited) != 1 || fs.waited[0] != "tmux-wait-0" {
		t.Errorf("waited on %v, want [tmux-wait-0]", fs.waited)
	}

	out, present := r.LastOutput()
	if !present {
		t.Fatal("no result saved")
	}
	wantOut := "$\n$ echo hi\nhi\n$"
	if out != wantOut {
		t.Errorf("LastOutput() = %q, want %q", out, wantOut)
	}
}

func TestTokenSequenceStrictlyIncreasing(t *testing.T) {
	steps := make([]step, 5)
	for i := range steps {
		steps[i] = step{exitCode: 0}
	}
	fs := newFakeSession(steps...)
	r := newTestRunner(fs, policy.New())

	d, _ := Batch([]string{"a1", "a2", "a3", "a4", "a5"})
	if ok, err := r.Execute(context.Background(), d); !ok || err != nil {
		t.Fatalf("Execute() = %v, %v", ok, err)
	}

	seen := map[string]bool{}
	for i, keys := range fs.sent {
		marker := markerOf(keys)
		want := fmt.Sprintf("TMUX_CMD_EXIT_CODE_%d", i)
		if marker != want {
			t.Errorf("command %d used marker %q, want %q", i, marker, want)
		}
		if seen[marker] {
			t.Errorf("marker %q reused", marker)
		}
		seen[marker] = true
	}
}

func TestBatchStopsAtFirstFailure(t *testing.T) {
	fs := newFakeSession(
		step{exitCode: 0},
		step{exitCode: 2}, // rejected, decider aborts
		step{exitCode: 0},
	)
	r := newTestRunner(fs, policy.New(), WithDecider(AbortDecider))

	d, _ := Batch([]string{"ls", "false", "echo never"})
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ok {
		t.Error("Execute() = true, want false")
	}
	if len(fs.sent) != 2 {
		t.Errorf("sent %d commands, want 2 (third must not run)", len(fs.sent))
	}

	// The aborted dispatch still saves its partial transcript.
	if _, present := r.LastOutput(); !present {
		t.Error("aborted dispatch did not save a result")
	}
}

func TestPolicyAcceptsGrepNoMatch(t *testing.T) {
	fs := newFakeSession(step{exitCode: 1})
	r := newTestRunner(fs, policy.New(), WithDecider(AbortDecider))

	d, _ := Single("grep missing file.txt")
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !ok {
		t.Error("grep exit 1 should be accepted without escalation")
	}
}

func TestUnregisteredExitOneEscalates(t *testing.T) {
	var got []Escalation
	recorder := func(e Escalation) bool {
		got = append(got, e)
		return false
	}

	fs := newFakeSession(step{exitCode: 1})
	r := newTestRunner(fs, policy.New(), WithDecider(recorder))

	d, _ := Single("ls /nonexistent")
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ok {
		t.Error("Execute() = true, want false after abort decision")
	}
	if len(got) != 1 {
		t.Fatalf("decider called %d times, want 1", len(got))
	}
	if got[0].Reason != PolicyRejectedExitStatus || got[0].ExitCode != 1 {
		t.Errorf("escalation = %+v, want PolicyRejectedExitStatus with code 1", got[0])
	}
}

func TestEscalationContinueKeepsGoing(t *testing.T) {
	fs := newFakeSession(step{exitCode: 1}, step{exitCode: 0})
	r := newTestRunner(fs, policy.New(), WithDecider(ContinueDecider))

	d, _ := Batch([]string{"false", "echo ok"})
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !ok {
		t.Error("Execute() = false, want true when decider continues")
	}
	if len(fs.sent) != 2 {
		t.Errorf("sent %d commands, want 2", len(fs.sent))
	}
}

func TestMissingStatusLineEscalatesUnresolved(t *testing.T) {
	var got []Escalation
	recorder := func(e Escalation) bool {
		got = append(got, e)
		return false
	}

	fs := newFakeSession(step{output: []string{"output"}, omitStatus: true})
	r := newTestRunner(fs, policy.New(), WithDecider(recorder))

	d, _ := Single("mystery")
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ok {
		t.Error("Execute() = true, want false")
	}
	if len(got) != 1 || got[0].Reason != UnresolvedExitStatus {
		t.Errorf("escalations = %+v, want one UnresolvedExitStatus", got)
	}
}

func TestWaitTimeoutEscalatesUnresolved(t *testing.T) {
	var got []Escalation
	recorder := func(e Escalation) bool {
		got = append(got, e)
		return false
	}

	fs := newFakeSession(step{waitErr: tmux.ErrWaitTimeout})
	r := newTestRunner(fs, policy.New(), WithDecider(recorder))

	d, _ := Single("sleep 9999")
	ok, err := r.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ok {
		t.Error("Execute() = true, want false")
	}
	if len(got) != 1 || got[0].Reason != UnresolvedExitStatus {
		t.Errorf("escalations = %+v, want one UnresolvedExitStatus", got)
	}
}

func TestExecuteRejectsWhileBusy(t *testing.T) {
	fs := newFakeSession(step{exitCode: 0})
	fs.waitGate = make(chan struct{})
	r := newTestRunner(fs, policy.New())

	d, _ := Single("sleep 1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Execute(context.Background(), d)
	}()

	// Wait for the first dispatch to reach the rendezvous.
	deadline := time.After(2 * time.Second)
	for !r.Busy() {
		select {
		case <-deadline:
			t.Fatal("first dispatch never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := r.Execute(context.Background(), d); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Execute() error = %v, want ErrBusy", err)
	}

	close(fs.waitGate)
	<-done

	if r.Busy() {
		t.Error("busy flag not cleared after dispatch")
	}
}

func TestMalformedDispatch(t *testing.T) {
	if _, err := Single(""); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Single(\"\") error = %v, want ErrMalformedCommand", err)
	}
	if _, err := Single("   "); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Single(whitespace) error = %v, want ErrMalformedCommand", err)
	}
	if _, err := Batch(nil); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Batch(nil) error = %v, want ErrMalformedCommand", err)
	}
	if _, err := Batch([]string{"ok", ""}); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Batch with empty element error = %v, want ErrMalformedCommand", err)
	}

	fs := newFakeSession()
	r := newTestRunner(fs, policy.New())
	if _, err := r.Execute(context.Background(), Dispatch{}); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Execute(zero Dispatch) error = %v, want ErrMalformedCommand", err)
	}
	if len(fs.sent) != 0 {
		t.Error("malformed dispatch must not touch the session")
	}
}

func TestFindExitCode(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		marker    string
		want      int
		wantFound bool
	}{
		{
			"simple",
			[]string{"$ cmd", "out", "TMUX_CMD_EXIT_CODE_3:0", "$"},
			"TMUX_CMD_EXIT_CODE_3", 0, true,
		},
		{
			"scans backward past prompt",
			[]string{"TMUX_CMD_EXIT_CODE_3:1", "TMUX_CMD_EXIT_CODE_3:7", "$"},
			"TMUX_CMD_EXIT_CODE_3", 7, true,
		},
		{
			"leading whitespace tolerated",
			[]string{"  TMUX_CMD_EXIT_CODE_4:127  "},
			"TMUX_CMD_EXIT_CODE_4", 127, true,
		},
		{
			"unparsable line skipped",
			[]string{"TMUX_CMD_EXIT_CODE_5:0", "TMUX_CMD_EXIT_CODE_5:garbage"},
			"TMUX_CMD_EXIT_CODE_5", 0, true,
		},
		{
			"missing",
			[]string{"$ cmd", "out", "$"},
			"TMUX_CMD_EXIT_CODE_9", 0, false,
		},
		{
			"wrong marker",
			[]string{"TMUX_CMD_EXIT_CODE_1:0"},
			"TMUX_CMD_EXIT_CODE_2", 0, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := findExitCode(tt.lines, tt.marker)
			if got != tt.want || found != tt.wantFound {
				t.Errorf("findExitCode() = (%d, %v), want (%d, %v)", got, found, tt.want, tt.wantFound)
			}
		})
	}
}

func TestResultStore(t *testing.T) {
	s := NewResultStore()
	if _, present := s.Get(); present {
		t.Error("fresh store should be empty")
	}
	s.Save("first")
	s.Save("second")
	if out, present := s.Get(); !present || out != "second" {
		t.Errorf("Get() = (%q, %v), want (\"second\", true)", out, present)
	}
	s.Clear()
	if _, present := s.Get(); present {
		t.Error("Clear() did not empty the slot")
	}
}

func TestResultStoreMirror(t *testing.T) {
	path := t.TempDir() + "/last-output"
	s := NewResultStoreWithMirror(path)
	s.Save("mirrored text")

	if out, ok := ReadMirror(path); !ok || out != "mirrored text" {
		t.Errorf("ReadMirror() = (%q, %v), want (\"mirrored text\", true)", out, ok)
	}

	s.Clear()
	if _, ok := ReadMirror(path); ok {
		t.Error("Clear() should remove the mirror file")
	}
}
