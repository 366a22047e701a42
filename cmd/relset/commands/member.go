package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/sym"
)

// MemberCmd represents the member command
var MemberCmd = &cobra.Command{
	Use:   "member",
	Short: sym.Set + " Manage set members",
	Long: sym.Set + ` member — Manage set members

Static members name one entity. Filter groups select every entity of a type
matching a predicate, re-evaluated on each sync check.

Predicates are JSON trees of {"op", "field", "value" | "values" | "args"}
with ops eq, neq, contains, in, gt, gte, lt, lte, exists, and, or, not.
An empty predicate ({}) matches every entity of the type.

Examples:
  relset member add Storm-Main pipe/P-101
  relset member filter Storm-Main pipe '{"op":"eq","field":"network","value":"storm"}'
  relset member rm Storm-Main 3f2a...`,
}

var memberAddCmd = &cobra.Command{
	Use:   "add <set> <type/id>",
	Short: "Add a static member",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemberAdd,
}

var memberFilterCmd = &cobra.Command{
	Use:   "filter <set> <entity-type> [predicate-json]",
	Short: "Add a filter group",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runMemberFilter,
}

var memberRmCmd = &cobra.Command{
	Use:   "rm <set> <member-id>",
	Short: "Remove a member or filter group",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemberRm,
}

func init() {
	MemberCmd.AddCommand(memberAddCmd)
	MemberCmd.AddCommand(memberFilterCmd)
	MemberCmd.AddCommand(memberRmCmd)
}

func runMemberAdd(cmd *cobra.Command, args []string) error {
	ref, err := entity.ParseRef(args[1])
	if err != nil {
		return err
	}

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
	m, err := s.engine.AddStaticMember(ctx, set.ID, ref)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Added %s to %s (member %s)\n", sym.Set, ref, set.Name, m.ID)
	return nil
}

func runMemberFilter(cmd *cobra.Command, args []string) error {
	var p entity.Predicate
	if len(args) == 3 {
		var err error
		if p, err = entity.UnmarshalPredicate(args[2]); err != nil {
			return errors.WithHint(err, `predicates look like {"op":"eq","field":"material","value":"PVC"}`)
		}
	}

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
	m, err := s.engine.AddFilterGroup(ctx, set.ID, args[1], p)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Added filter on %s to %s (member %s)\n", sym.Set, args[1], set.Name, m.ID)
	return nil
}

func runMemberRm(cmd *cobra.Command, args []string) error {
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
	if err := s.engine.RemoveMember(ctx, set.ID, args[1]); err != nil {
		return err
	}
	pterm.Success.Printf("%s Removed member %s from %s\n", sym.Set, args[1], set.Name)
	return nil
}
