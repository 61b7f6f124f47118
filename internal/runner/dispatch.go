package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCommand is returned for empty commands and empty batches.
// Malformed input fails before any session interaction.
var ErrMalformedCommand = errors.New("malformed command")

// Dispatch is the tagged single-or-batch command variant. The shape is
// decided once, at the API boundary, so the execution path never
// re-inspects input types.
type Dispatch struct {
	commands []string
	batch    bool
}

// Single builds a dispatch for one command.
func Single(command string) (Dispatch, error) {
	if strings.TrimSpace(command) == "" {
		return Dispatch{}, fmt.Errorf("%w: empty command", ErrMalformedCommand)
	}
	return Dispatch{commands: []string{command}}, nil
}

// Batch builds a dispatch for an ordered sequence of commands. The
// batch runs strictly in order and stops at the first failure.
func Batch(commands []string) (Dispatch, error) {
	if len(commands) == 0 {
		return Dispatch{}, fmt.Errorf("%w: empty batch", ErrMalformedCommand)
	}
	for i, c := range commands {
		if strings.TrimSpace(c) == "" {
			return Dispatch{}, fmt.Errorf("%w: empty command at index %d", ErrMalformedCommand, i)
		}
	}
	return Dispatch{commands: append([]string(nil), commands...), batch: true}, nil
}

// Commands returns the ordered command list (length 1 for Single).
func (d Dispatch) Commands() []string {
	return d.commands
}

// IsBatch reports whether the dispatch was built as a batch.
func (d Dispatch) IsBatch() bool {
	return d.batch
}
