// Package sanitize removes command-synchronization bookkeeping from
// captured tmux scrollback.
//
// Every command injected by the runner carries an epilogue — an exit
// status echo plus a wait-for signal emission — and leaves a status line
// in the pane. Both must be stripped from captured output, but the pane
// wraps text at terminal width, so any keyword of the epilogue can be
// split across physical lines at an arbitrary character boundary. The
// patterns here therefore tolerate whitespace (including newlines)
// between every character of every literal keyword, and the whole
// transcript is processed as a single buffer rather than line by line.
package sanitize

import (
	"regexp"
	"strings"
)

// Wire grammar emitted by the runner. The sanitizer's patterns are
// coupled to these literals; change them together.
const (
	// MarkerPrefix starts the exit status marker, e.g.
	// TMUX_CMD_EXIT_CODE_7:$? in the epilogue and
	// TMUX_CMD_EXIT_CODE_7:0 once the shell expands it.
	MarkerPrefix = "TMUX_CMD_EXIT_CODE_"

	// ChannelPrefix starts the wait-for channel name, e.g. tmux-wait-7.
	ChannelPrefix = "tmux-wait-"
)

// wordPattern turns a literal keyword into a pattern that matches the
// keyword with arbitrary whitespace, including line breaks, between any
// two of its characters. A keyword split by terminal wrapping still
// matches as one token.
func wordPattern(word string) string {
	parts := make([]string, 0, len(word))
	for _, r := range word {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	return strings.Join(parts, `\s*`)
}

// epiloguePattern matches the injected suffix:
//
//	;echo "TMUX_CMD_EXIT_CODE_<n>:$?";tmux wait-for -S "tmux-wait-<n>"
//
// The "tmux" word and the "-for" suffix are optional so that
// transcripts produced by the abbreviated `wait -S` form of the signal
// emission sanitize identically. The punctuation (semicolons, quotes,
// the -S flag shape) is required: a stray mention of the marker keyword
// in real output does not satisfy this pattern.
var epiloguePattern = `;` +
	`\s*` + wordPattern("echo") + `\s*` +
	`"\s*` + wordPattern(MarkerPrefix) + `.*?` +
	wordPattern(`:$?`) + `\s*` +
	`"` +
	`\s*;\s*` +
	`(?:` + wordPattern("tmux") + `\s*)?` +
	wordPattern("wait") + `(?:\s*` + wordPattern("-for") + `)?` + `\s*` +
	wordPattern("-S") + `\s*"` + `.*?` + `"`

// statusLinePattern matches the expanded status line at the start of a
// line: the marker keyword, the token text, a colon, and the numeric
// exit status (digits may be wrapped too).
var statusLinePattern = `^\s*` + wordPattern(MarkerPrefix) + `.*?` + `:` + `[\s\d]*`

// atomicBlockPattern captures (epilogue)(real output)(status line); the
// middle group is everything the command genuinely printed between the
// injected command's echo and its status line, and is the only part
// kept. (?s) lets the middle span lines, (?m) anchors the status line.
var atomicBlockPattern = regexp.MustCompile(
	`(?sm)(` + epiloguePattern + `)(.*?)(` + statusLinePattern + `)`,
)

// CleanLines sanitizes a transcript given as captured pane lines.
func CleanLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return Clean(strings.Join(lines, "\n"))
}

// Clean removes every injected epilogue and status line from the raw
// transcript, preserving the real output between them verbatim. It is
// best-effort by construction: input that matches nothing is returned
// unchanged apart from whitespace trimming, and it never fails.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := atomicBlockPattern.ReplaceAllString(raw, "${2}")
	cleaned = collapseBlankPairs(cleaned)
	return strings.TrimSpace(cleaned)
}

// collapseBlankPairs drops one line of each adjacent blank pair in a
// single pass. Deleting an epilogue and status line can leave two
// now-empty lines touching; a single pairwise pass removes that
// artifact without flattening longer runs of intentional blank output.
func collapseBlankPairs(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if i+1 < len(lines) &&
			strings.TrimSpace(lines[i]) == "" &&
			strings.TrimSpace(lines[i+1]) == "" {
			out = append(out, lines[i])
			i++ // skip the second of the pair
			continue
		}
		out = append(out, lines[i])
	}
	return strings.Join(out, "\n")
}
