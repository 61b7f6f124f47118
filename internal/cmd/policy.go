package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v2"

	"github.com/muxcmd/muxcmd/internal/style"
)

var policyCmd = &cobra.Command{
	Use:     "policy",
	GroupID: GroupDispatch,
	Short:   "Manage accepted exit codes per command prefix",
	Long: `Manage the exit-code policy: which exit codes count as success for
commands matching a prefix.

Commands without a matching prefix accept only exit code 0. grep and
diff are pre-registered with {0, 1}, since exit 1 means "no match" /
"files differ" rather than failure. The longest matching prefix wins.`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the effective policy rules",
	RunE:  runPolicyList,
}

var policyAddCmd = &cobra.Command{
	Use:   "add <prefix> <code>...",
	Short: "Register accepted exit codes for a command prefix",
	Long: `Register accepted exit codes for a command prefix and persist the
rule to the rules file. An existing rule for the same prefix is
replaced.

Examples:
  muxcmd policy add rsync 0 24
  muxcmd policy add 'git diff' 0 1`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPolicyAdd,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyAddCmd)
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	pol, err := loadPolicy()
	if err != nil {
		return err
	}
	rules := pol.Rules()

	prefixes := make([]string, 0, len(rules))
	for prefix := range rules {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	fmt.Printf("%s\n\n", style.Bold.Render("Exit Code Policy"))
	for _, prefix := range prefixes {
		fmt.Printf("  %-20s %v\n", style.Bold.Render(prefix), rules[prefix])
	}
	fmt.Printf("  %-20s %v\n", style.Dim.Render("(everything else)"), []int{0})
	if cfg.Policy.RulesFile != "" {
		fmt.Printf("\n%s %s\n", style.Dim.Render("Rules file:"), cfg.Policy.RulesFile)
	}
	return nil
}

func runPolicyAdd(cmd *cobra.Command, args []string) error {
	if cfg.Policy.RulesFile == "" {
		return fmt.Errorf("no rules file configured (policy.rules_file)")
	}

	prefix := args[0]
	codes := make([]int, 0, len(args)-1)
	for _, raw := range args[1:] {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("exit code %q is not an integer", raw)
		}
		codes = append(codes, code)
	}

	rules, err := readRulesFile(cfg.Policy.RulesFile)
	if err != nil {
		return err
	}
	rules[prefix] = codes

	if err := writeRulesFile(cfg.Policy.RulesFile, rules); err != nil {
		return err
	}
	fmt.Printf("%s %s now accepts %v\n", style.SuccessPrefix, style.Bold.Render(prefix), codes)
	return nil
}

func readRulesFile(path string) (map[string][]int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string][]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var file struct {
		Rules map[string][]int `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if file.Rules == nil {
		file.Rules = map[string][]int{}
	}
	return file.Rules, nil
}

func writeRulesFile(path string, rules map[string][]int) error {
	data, err := yaml.Marshal(struct {
		Rules map[string][]int `yaml:"rules"`
	}{rules})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating rules dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing rules file: %w", err)
	}
	return nil
}
