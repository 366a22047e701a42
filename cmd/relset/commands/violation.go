package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/sym"
	"github.com/teranos/relset/violation"
)

// ViolationCmd represents the violation command
var ViolationCmd = &cobra.Command{
	Use:   "violation",
	Short: "List and manage violations",
	Long: sym.Violation + ` violation — List and manage violations

Open violations can be resolved (fixed) or acknowledged (accepted risk, note
required). Both are terminal; a problem that reappears opens a new violation.

Examples:
  relset violation ls Storm-Main --status open
  relset violation resolve 5b7e... --actor alice --note "relined in 2024"
  relset violation ack 5b7e... --actor alice --note "scheduled for replacement"
  relset violation history 5b7e...`,
}

var violationLsCmd = &cobra.Command{
	Use:   "ls <set>",
	Short: "List violations of a set",
	Args:  cobra.ExactArgs(1),
	RunE:  runViolationLs,
}

var violationResolveCmd = &cobra.Command{
	Use:   "resolve <violation-id>",
	Short: "Mark an open violation resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runViolationResolve,
}

var violationAckCmd = &cobra.Command{
	Use:   "ack <violation-id>",
	Short: "Acknowledge an open violation (note required)",
	Args:  cobra.ExactArgs(1),
	RunE:  runViolationAck,
}

var violationHistoryCmd = &cobra.Command{
	Use:   "history <violation-id>",
	Short: "Show the lifecycle events of a violation",
	Args:  cobra.ExactArgs(1),
	RunE:  runViolationHistory,
}

var (
	violationStatuses []string
	violationActor    string
	violationNote     string
	violationJSON     bool
)

func init() {
	violationLsCmd.Flags().StringSliceVar(&violationStatuses, "status", nil, "Filter by status: open, resolved, acknowledged")
	violationLsCmd.Flags().BoolVar(&violationJSON, "json", false, "Output as JSON")

	for _, c := range []*cobra.Command{violationResolveCmd, violationAckCmd} {
		c.Flags().StringVar(&violationActor, "actor", "", "Who is making the change")
		c.Flags().StringVar(&violationNote, "note", "", "Resolution note")
	}

	ViolationCmd.AddCommand(violationLsCmd)
	ViolationCmd.AddCommand(violationResolveCmd)
	ViolationCmd.AddCommand(violationAckCmd)
	ViolationCmd.AddCommand(violationHistoryCmd)
}

func parseStatuses(raw []string) ([]violation.Status, error) {
	out := make([]violation.Status, 0, len(raw))
	for _, r := range raw {
		st := violation.Status(strings.ToLower(strings.TrimSpace(r)))
		if !st.IsValid() {
			return nil, errors.NewInvalidRequestError("unknown status %q (expected open, resolved or acknowledged)", r)
		}
		out = append(out, st)
	}
	return out, nil
}

func runViolationLs(cmd *cobra.Command, args []string) error {
	statuses, err := parseStatuses(violationStatuses)
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
	vs, err := s.engine.ListViolations(ctx, set.ID, statuses...)
	if err != nil {
		return err
	}
	if violationJSON {
		return printJSON(vs)
	}
	return printTable(violationHeader, violationRows(vs), "No violations for "+set.Name)
}

func runViolationResolve(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	v, err := s.engine.ResolveViolation(cmd.Context(), args[0], violationActor, violationNote)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Violation %s resolved\n", sym.Violation, v.ID)
	return nil
}

func runViolationAck(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	v, err := s.engine.AcknowledgeViolation(cmd.Context(), args[0], violationActor, violationNote)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Violation %s acknowledged\n", sym.Violation, v.ID)
	return nil
}

func runViolationHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	events, err := s.engine.ViolationHistory(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		from := string(e.From)
		if from == "" {
			from = "-"
		}
		rows = append(rows, []string{formatTime(e.At), from, string(e.To), string(e.Source), e.Actor, e.Note})
	}
	return printTable([]string{"At", "From", "To", "Source", "Actor", "Note"}, rows, "No events")
}
