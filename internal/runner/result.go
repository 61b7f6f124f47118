package runner

import (
	"os"

	"github.com/muxcmd/muxcmd/internal/util"
)

// ResultStore holds the sanitized output of the most recent dispatch.
// It is a single slot: last write wins, no history. Writers are not
// internally locked — correctness relies on the single-in-flight
// dispatch guard, which admits one writer at a time.
//
// An optional mirror path persists the slot to disk (written
// atomically) so other processes can read the last result.
type ResultStore struct {
	output     string
	present    bool
	mirrorPath string
}

// NewResultStore creates an empty in-memory store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// NewResultStoreWithMirror creates a store that also writes each saved
// result to path.
func NewResultStoreWithMirror(path string) *ResultStore {
	return &ResultStore{mirrorPath: path}
}

// Save overwrites the slot. Mirror write failures are ignored; the
// in-memory slot is the source of truth.
func (s *ResultStore) Save(output string) {
	s.output = output
	s.present = true
	if s.mirrorPath != "" {
		_ = util.AtomicWriteFile(s.mirrorPath, []byte(output), 0644)
	}
}

// Get returns the last saved output and whether one is present.
func (s *ResultStore) Get() (string, bool) {
	return s.output, s.present
}

// Clear empties the slot and removes the mirror file if one exists.
func (s *ResultStore) Clear() {
	s.output = ""
	s.present = false
	if s.mirrorPath != "" {
		_ = os.Remove(s.mirrorPath)
	}
}

// ReadMirror reads a mirrored result from disk. Used by `muxcmd result`
// to show the last output from a different process.
func ReadMirror(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
