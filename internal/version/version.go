// Package version carries build provenance, stamped via -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X .../internal/version.Version=v0.3.0 \
//	                   -X .../internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// minCommitLen is the shortest prefix we trust for commit comparison.
const minCommitLen = 7

// ShortCommit truncates a commit hash to 12 characters for display.
func ShortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// CommitsMatch reports whether two commit hashes refer to the same
// commit, tolerating one being a prefix of the other. Hashes shorter
// than minCommitLen never match.
func CommitsMatch(a, b string) bool {
	if len(a) < minCommitLen || len(b) < minCommitLen {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return b[:len(a)] == a
}

// String renders the full version line.
func String() string {
	s := Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", ShortCommit(Commit))
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
