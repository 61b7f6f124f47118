// Package policy maps command prefixes to the exit codes that count as
// success for that command.
//
// Some tools signal "nothing found" rather than "broken" with a nonzero
// exit: grep returns 1 when no lines match, diff returns 1 when the
// inputs differ. Treating those as failures would abort batches that are
// actually fine, so the policy table lets specific command prefixes
// accept extra codes. Everything else accepts only 0.
package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v2"
)

// DefaultAcceptedCodes applies when no registered prefix matches.
var DefaultAcceptedCodes = []int{0}

// rule is a single prefix registration.
type rule struct {
	prefix string
	codes  []int
}

// Policy is an ordered prefix table. Lookup is longest-prefix-wins:
// when both "log" and "logrotate" are registered, "logrotate status"
// matches the longer prefix regardless of registration order.
type Policy struct {
	rules []rule
}

// New returns a policy with the pragmatic default rules: grep and diff
// exit 1 for "no match" / "differences found", which is not a failure.
func New() *Policy {
	p := &Policy{}
	p.AddRule("grep", []int{0, 1})
	p.AddRule("diff", []int{0, 1})
	return p
}

// Empty returns a policy with no rules registered.
func Empty() *Policy {
	return &Policy{}
}

// AddRule registers accepted exit codes for commands starting with
// prefix. An existing rule for the identical prefix is overwritten.
func (p *Policy) AddRule(prefix string, codes []int) {
	for i := range p.rules {
		if p.rules[i].prefix == prefix {
			p.rules[i].codes = append([]int(nil), codes...)
			return
		}
	}
	p.rules = append(p.rules, rule{prefix: prefix, codes: append([]int(nil), codes...)})
	// Keep longest prefixes first so lookup is deterministic when one
	// registered prefix is a prefix of another.
	sort.SliceStable(p.rules, func(i, j int) bool {
		return len(p.rules[i].prefix) > len(p.rules[j].prefix)
	})
}

// AcceptedCodes returns the accepted exit codes for the given command
// text. The command is trimmed before matching, mirroring how the shell
// ignores leading whitespace.
func (p *Policy) AcceptedCodes(command string) []int {
	trimmed := strings.TrimSpace(command)
	for _, r := range p.rules {
		if strings.HasPrefix(trimmed, r.prefix) {
			return r.codes
		}
	}
	return DefaultAcceptedCodes
}

// Accepts reports whether exitCode is an accepted outcome for command.
func (p *Policy) Accepts(command string, exitCode int) bool {
	for _, c := range p.AcceptedCodes(command) {
		if c == exitCode {
			return true
		}
	}
	return false
}

// Rules returns the registered prefixes and their codes, longest prefix
// first (the lookup order).
func (p *Policy) Rules() map[string][]int {
	out := make(map[string][]int, len(p.rules))
	for _, r := range p.rules {
		out[r.prefix] = append([]int(nil), r.codes...)
	}
	return out
}

// ruleFile is the YAML shape for a policy rules file:
//
//	rules:
//	  grep: [0, 1]
//	  "make test": [0, 2]
type ruleFile struct {
	Rules map[string][]int `yaml:"rules"`
}

// LoadRules merges rules from a YAML file into the policy. Prefixes
// already registered are overwritten by the file's entries.
func (p *Policy) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy rules: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parsing policy rules: %w", err)
	}

	// Sort prefixes for deterministic insertion; lookup order is by
	// length anyway.
	prefixes := make([]string, 0, len(rf.Rules))
	for prefix := range rf.Rules {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		p.AddRule(prefix, rf.Rules[prefix])
	}
	return nil
}
