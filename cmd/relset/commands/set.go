package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/engine"
	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/relset"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/sym"
)

// SetCmd represents the set command
var SetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create and inspect relationship sets",
	Long: sym.Set + ` set — Create and inspect relationship sets

Sets are referenced by id or by name in every command.

Examples:
  relset set create Storm-Main --category drainage --description "Main storm network"
  relset set ls
  relset set show Storm-Main`,
}

var setCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty relationship set",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetCreate,
}

var setLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List relationship sets",
	Args:  cobra.NoArgs,
	RunE:  runSetLs,
}

var setShowCmd = &cobra.Command{
	Use:   "show <set>",
	Short: "Show a set with its members and rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetShow,
}

var (
	setDescription string
	setCategory    string
	setJSON        bool
)

func init() {
	setCreateCmd.Flags().StringVar(&setDescription, "description", "", "Free-form description")
	setCreateCmd.Flags().StringVar(&setCategory, "category", "", "Category label")
	setShowCmd.Flags().BoolVar(&setJSON, "json", false, "Output as JSON")

	SetCmd.AddCommand(setCreateCmd)
	SetCmd.AddCommand(setLsCmd)
	SetCmd.AddCommand(setShowCmd)
}

func runSetCreate(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	set, err := s.engine.CreateSet(cmd.Context(), engine.CreateSetRequest{
		Name:        args[0],
		Description: setDescription,
		Category:    setCategory,
	})
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Created set %s (%s)\n", sym.Set, set.Name, set.ID)
	return nil
}

func runSetLs(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	sets, err := s.engine.ListSets(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(sets))
	for _, set := range sets {
		rows = append(rows, []string{
			set.ID,
			set.Name,
			set.Category,
			set.Description,
			formatTime(set.UpdatedAt),
		})
	}
	return printTable([]string{"ID", "Name", "Category", "Description", "Updated"}, rows, "No sets yet")
}

func runSetShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	set, err := s.engine.FindSet(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if setJSON {
		return printJSON(set)
	}

	pterm.DefaultHeader.WithFullWidth().Printf("%s %s", sym.Set, set.Name)
	pterm.Printf("ID:          %s\n", set.ID)
	pterm.Printf("Category:    %s\n", set.Category)
	pterm.Printf("Description: %s\n\n", set.Description)

	if err := printTable([]string{"Member", "Kind", "Target"}, memberRows(set.Members), "No members"); err != nil {
		return err
	}
	fmt.Println()
	return printTable([]string{"Rule", "Type", "Field", "Check", "Expected", "Severity"}, ruleRows(set.Rules), "No rules")
}

func memberRows(members []relset.Member) [][]string {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		target := m.Ref().String()
		if m.Kind == relset.MemberFilter {
			target = m.EntityType + " where " + describePredicate(m.Predicate)
		}
		rows = append(rows, []string{m.ID, string(m.Kind), target})
	}
	return rows
}

func ruleRows(rules []rule.Rule) [][]string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		expected := r.Expected
		if r.Check == rule.CheckInList {
			expected = strings.Join(r.ExpectedList, ", ")
		}
		rows = append(rows, []string{r.ID, r.EntityType, r.Field, string(r.Check), expected, string(r.Severity)})
	}
	return rows
}

func describePredicate(p entity.Predicate) string {
	text, err := entity.MarshalPredicate(p)
	if err != nil || text == "{}" {
		return "*"
	}
	return text
}
