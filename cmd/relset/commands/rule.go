package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/sym"
)

// RuleCmd represents the rule command
var RuleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Attach and remove rules",
	Long: sym.Rule + ` rule — Attach and remove rules

Checks: required, equals, not_equals, contains, in_list, min, max, regex.
Rules are validated against the field catalog when they are added.

Examples:
  relset rule add Storm-Main --type pipe --field material --check in_list --list PVC,HDPE,RCP
  relset rule add Storm-Main --type pipe --field diameter_mm --check min --expected 150
  relset rule add Storm-Main --type pipe --field install_date --check required --severity warning
  relset rule rm Storm-Main 9c1d...`,
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <set>",
	Short: "Add a rule to a set",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleAdd,
}

var ruleRmCmd = &cobra.Command{
	Use:   "rm <set> <rule-id>",
	Short: "Remove a rule from a set",
	Args:  cobra.ExactArgs(2),
	RunE:  runRuleRm,
}

var (
	ruleEntityType  string
	ruleField       string
	ruleCheck       string
	ruleExpected    string
	ruleList        []string
	ruleSeverity    string
	ruleDescription string
)

func init() {
	ruleAddCmd.Flags().StringVar(&ruleEntityType, "type", "", "Entity type the rule applies to")
	ruleAddCmd.Flags().StringVar(&ruleField, "field", "", "Field to check")
	ruleAddCmd.Flags().StringVar(&ruleCheck, "check", "", "Check type")
	ruleAddCmd.Flags().StringVar(&ruleExpected, "expected", "", "Expected value, bound, substring or pattern")
	ruleAddCmd.Flags().StringSliceVar(&ruleList, "list", nil, "Allowed values for in_list (comma separated)")
	ruleAddCmd.Flags().StringVar(&ruleSeverity, "severity", string(rule.SeverityError), "error or warning")
	ruleAddCmd.Flags().StringVar(&ruleDescription, "description", "", "Free-form description")
	_ = ruleAddCmd.MarkFlagRequired("type")
	_ = ruleAddCmd.MarkFlagRequired("field")
	_ = ruleAddCmd.MarkFlagRequired("check")

	RuleCmd.AddCommand(ruleAddCmd)
	RuleCmd.AddCommand(ruleRmCmd)
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	set, err := s.engine.FindSet(ctx, args[0])
	if err != nil {
		return err
	}

	r, err := s.engine.AddRule(ctx, set.ID, rule.Rule{
		EntityType:   ruleEntityType,
		Field:        ruleField,
		Check:        rule.CheckType(strings.TrimSpace(ruleCheck)),
		Expected:     ruleExpected,
		ExpectedList: ruleList,
		Severity:     rule.Severity(ruleSeverity),
		Description:  ruleDescription,
	})
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Added rule %s on %s.%s to %s\n", sym.Rule, r.ID, r.EntityType, r.Field, set.Name)
	return nil
}

func runRuleRm(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	set, err := s.engine.FindSet(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.engine.RemoveRule(ctx, set.ID, args[1]); err != nil {
		return err
	}
	pterm.Success.Printf("%s Removed rule %s from %s\n", sym.Rule, args[1], set.Name)
	return nil
}
