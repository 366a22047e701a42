package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/sym"
	"github.com/teranos/relset/synccheck"
	"github.com/teranos/relset/violation"
)

// SyncCmd represents the sync command
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run sync checks",
	Long: sym.Sync + ` sync — Run sync checks

A sync check resolves a set's members, checks existence, link integrity
and every rule, then records new violations and auto-resolves the ones
that no longer occur. A failed check leaves violations untouched.

Examples:
  relset sync run Storm-Main
  relset sync runs Storm-Main --limit 5`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run <set>",
	Short: "Run a sync check now",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncRun,
}

var syncRunsCmd = &cobra.Command{
	Use:   "runs <set>",
	Short: "List past sync check runs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncRuns,
}

var (
	syncJSON  bool
	runsLimit int
)

func init() {
	syncRunCmd.Flags().BoolVar(&syncJSON, "json", false, "Output the result as JSON")
	syncRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show (0 for all)")

	SyncCmd.AddCommand(syncRunCmd)
	SyncCmd.AddCommand(syncRunsCmd)
}

func runSyncRun(cmd *cobra.Command, args []string) error {
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

	spinner, _ := pterm.DefaultSpinner.Start("Running sync check on " + set.Name + "...")
	res, err := s.engine.RunSyncCheck(ctx, set.ID)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Sync check failed")
		}
		return err
	}
	if spinner != nil {
		spinner.Success("Sync check completed")
	}

	if syncJSON {
		return printJSON(res)
	}
	printSyncResult(res)
	return nil
}

func printSyncResult(res *synccheck.Result) {
	pterm.Info.Printf("%s Run %s: %d members checked, %d new, %d auto-resolved\n",
		sym.Sync, res.Run.ID, res.Run.MembersChecked, len(res.NewViolations), len(res.AutoResolvedViolations))

	if len(res.NewViolations) > 0 {
		pterm.Println()
		pterm.Warning.Println("New violations:")
		_ = printTable(violationHeader, violationRows(res.NewViolations), "")
	}
	if len(res.AutoResolvedViolations) > 0 {
		pterm.Println()
		pterm.Success.Println("Auto-resolved:")
		_ = printTable(violationHeader, violationRows(res.AutoResolvedViolations), "")
	}
}

func runSyncRuns(cmd *cobra.Command, args []string) error {
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
	runs, err := s.engine.ListRuns(ctx, set.ID, runsLimit)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			string(r.Status),
			formatTime(r.StartedAt),
			formatTimePtr(r.CompletedAt),
			strconv.Itoa(r.MembersChecked),
			strconv.Itoa(r.NewCount),
			strconv.Itoa(r.AutoResolvedCount),
			r.Error,
		})
	}
	return printTable([]string{"Run", "Status", "Started", "Completed", "Members", "New", "Auto-resolved", "Error"},
		rows, "No runs yet for "+set.Name)
}

var violationHeader = []string{"ID", "Kind", "Severity", "Subject", "Message", "Status", "Detected"}

func violationRows(vs []violation.Violation) [][]string {
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []string{
			v.ID,
			string(v.Kind),
			v.Severity,
			v.Subject.String(),
			v.Message,
			string(v.Status),
			formatTime(v.DetectedAt),
		})
	}
	return rows
}
