package runner

import (
	"fmt"

	"github.com/muxcmd/muxcmd/internal/sanitize"
)

// Token identifies one dispatched command's synchronization state: the
// wait-for channel the runner blocks on and the marker the status line
// starts with. Tokens derive deterministically from a per-session
// sequence that only ever moves forward, so no marker or channel name
// is reused within a session's lifetime.
type Token struct {
	Sequence int
	Channel  string
	Marker   string
}

// tokenIssuer hands out strictly increasing tokens. Not safe for
// concurrent use; the single-in-flight dispatch guard already
// serializes callers.
type tokenIssuer struct {
	next int
}

// Issue returns the next token and advances the sequence.
func (ti *tokenIssuer) Issue() Token {
	seq := ti.next
	ti.next++
	return Token{
		Sequence: seq,
		Channel:  fmt.Sprintf("%s%d", sanitize.ChannelPrefix, seq),
		Marker:   fmt.Sprintf("%s%d", sanitize.MarkerPrefix, seq),
	}
}
