package sanitize

import (
	"fmt"
	"strings"
	"testing"
)

func TestCleanEmpty(t *testing.T) {
	if got := Clean(""); got != "" {
		t.Errorf("Clean(\"\") = %q, want \"\"", got)
	}
	if got := CleanLines(nil); got != "" {
		t.Errorf("CleanLines(nil) = %q, want \"\"", got)
	}
	if got := CleanLines([]string{}); got != "" {
		t.Errorf("CleanLines([]) = %q, want \"\"", got)
	}
}

func TestCleanRoundTrip(t *testing.T) {
	// Transcript as captured from a pane: wrapped command with the
	// abbreviated signal-emit form, the command's output, the expanded
	// status line, and the next prompt.
	lines := []string{
		`prompt echo bbb;echo "TMUX_CMD_EXIT_CODE_127:$?";wait -S "id-123"`,
		"bbb",
		"TMUX_CMD_EXIT_CODE_127:127",
		"prompt",
	}
	want := "prompt echo bbb\nbbb\nprompt"
	if got := CleanLines(lines); got != want {
		t.Errorf("CleanLines() = %q, want %q", got, want)
	}
}

func TestCleanFullGrammar(t *testing.T) {
	lines := []string{
		`$ ls -l;echo "TMUX_CMD_EXIT_CODE_3:$?";tmux wait-for -S "tmux-wait-3"`,
		"total 0",
		"TMUX_CMD_EXIT_CODE_3:0",
		"$",
	}
	want := "$ ls -l\ntotal 0\n$"
	if got := CleanLines(lines); got != want {
		t.Errorf("CleanLines() = %q, want %q", got, want)
	}
}

func TestCleanMultiCommand(t *testing.T) {
	lines := []string{
		`$ echo one;echo "TMUX_CMD_EXIT_CODE_0:$?";tmux wait-for -S "tmux-wait-0"`,
		"one",
		"TMUX_CMD_EXIT_CODE_0:0",
		`$ echo two;echo "TMUX_CMD_EXIT_CODE_1:$?";tmux wait-for -S "tmux-wait-1"`,
		"two",
		"TMUX_CMD_EXIT_CODE_1:0",
		"$",
	}
	want := "$ echo one\none\n$ echo two\ntwo\n$"
	if got := CleanLines(lines); got != want {
		t.Errorf("CleanLines() = %q, want %q", got, want)
	}
}

func TestCleanFalsePositiveSafety(t *testing.T) {
	// A command that merely mentions the marker keyword, without the
	// epilogue punctuation around it, must survive untouched.
	lines := []string{
		`echo "A user string: TMUX_CMD_EXIT_CODE_99:99"`,
		"A user string: TMUX_CMD_EXIT_CODE_99:99",
	}
	want := strings.Join(lines, "\n")
	if got := CleanLines(lines); got != want {
		t.Errorf("CleanLines() = %q, want %q", got, want)
	}
}

func TestCleanWrapInvariance(t *testing.T) {
	const epilogue = `;echo "TMUX_CMD_EXIT_CODE_3:$?";tmux wait-for -S "tmux-wait-3"`
	const rest = "\ntotal 0\nTMUX_CMD_EXIT_CODE_3:0\n$"

	want := Clean("$ ls -l" + epilogue + rest)
	if want != "$ ls -l\ntotal 0\n$" {
		t.Fatalf("unwrapped Clean() = %q", want)
	}

	// Splitting the epilogue at any character boundary must sanitize
	// to the same result as the unwrapped form.
	for i := 1; i < len(epilogue); i++ {
		wrapped := "$ ls -l" + epilogue[:i] + "\n" + epilogue[i:] + rest
		if got := Clean(wrapped); got != want {
			t.Errorf("split at %d (%q|%q): Clean() = %q, want %q",
				i, epilogue[:i], epilogue[i:], got, want)
		}
	}
}

func TestCleanThreeWaySplit(t *testing.T) {
	// An epilogue broken into three physical lines by a narrow pane.
	transcript := "$ make build;echo \"TMUX_CMD_EX\nIT_CODE_12:$?\";tmux wa\nit-for -S \"tmux-wait-12\"\nok\nTMUX_CMD_EXIT_CODE_12:0\n$"
	want := "$ make build\nok\n$"
	if got := Clean(transcript); got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanWrappedStatusDigits(t *testing.T) {
	// Exit status digits split across lines still parse as one token.
	transcript := "$ false;echo \"TMUX_CMD_EXIT_CODE_5:$?\";tmux wait-for -S \"tmux-wait-5\"\nTMUX_CMD_EXIT_CODE_5:1\n$"
	want := "$ false\n$"
	if got := Clean(transcript); got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"$ echo hi;echo \"TMUX_CMD_EXIT_CODE_0:$?\";tmux wait-for -S \"tmux-wait-0\"\nhi\nTMUX_CMD_EXIT_CODE_0:0\n$",
		"plain output with no markers at all",
		"",
		"partial ;echo \"TMUX_CMD_EXIT_CODE_ without the rest",
	}
	for i, in := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			once := Clean(in)
			twice := Clean(once)
			if once != twice {
				t.Errorf("Clean not idempotent:\nonce  = %q\ntwice = %q", once, twice)
			}
		})
	}
}

func TestCleanPreservesRealOutput(t *testing.T) {
	// Genuine blank lines inside command output: a single blank
	// survives; only adjacent blank pairs collapse, and only once.
	lines := []string{
		`$ cat notes;echo "TMUX_CMD_EXIT_CODE_2:$?";tmux wait-for -S "tmux-wait-2"`,
		"alpha",
		"",
		"beta",
		"TMUX_CMD_EXIT_CODE_2:0",
		"$",
	}
	want := "$ cat notes\nalpha\n\nbeta\n$"
	if got := CleanLines(lines); got != want {
		t.Errorf("CleanLines() = %q, want %q", got, want)
	}
}

func TestCleanPathologicalInput(t *testing.T) {
	// Near-miss bookkeeping text degrades to best-effort passthrough.
	in := `;echo "TMUX_CMD_EXIT_CODE_1:$?" but no signal emission here`
	if got := Clean(in); got != in {
		t.Errorf("Clean() = %q, want input unchanged", got)
	}
}

func TestCollapseBlankPairs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no blanks", "a\nb", "a\nb"},
		{"single blank kept", "a\n\nb", "a\n\nb"},
		{"pair collapses to one", "a\n\n\nb", "a\n\nb"},
		{"three blanks keep two", "a\n\n\n\nb", "a\n\n\nb"},
		{"four blanks keep two", "a\n\n\n\n\nb", "a\n\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collapseBlankPairs(tt.in); got != tt.want {
				t.Errorf("collapseBlankPairs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
