package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/am"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Inspect the relset database",
	Long: sym.DB + ` db — Inspect the relset database

Examples:
  relset db stats                 # Row counts and violation status breakdown`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

// statTables are counted by db stats, in display order.
var statTables = []string{
	"relationship_sets",
	"set_members",
	"set_rules",
	"sync_runs",
	"violations",
	"violation_events",
	"templates",
	"entities",
	"entity_refs",
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	pterm.DefaultHeader.WithFullWidth().Printf("%s Database Statistics", sym.DB)
	pterm.Printf("Database Path: %s\n\n", cfg.GetDatabasePath())

	rows := make([][]string, 0, len(statTables))
	for _, table := range statTables {
		var n int
		// Table names come from the fixed list above.
		if err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", table)
		}
		rows = append(rows, []string{table, strconv.Itoa(n)})
	}
	if err := printTable([]string{"Table", "Rows"}, rows, "No tables"); err != nil {
		return err
	}

	status, err := database.Query(`SELECT status, COUNT(*) FROM violations GROUP BY status ORDER BY status`)
	if err != nil {
		return errors.Wrap(err, "failed to query violation status")
	}
	defer status.Close()

	var byStatus [][]string
	for status.Next() {
		var s string
		var n int
		if err := status.Scan(&s, &n); err != nil {
			return errors.Wrap(err, "failed to scan violation status")
		}
		byStatus = append(byStatus, []string{s, strconv.Itoa(n)})
	}
	if err := status.Err(); err != nil {
		return errors.Wrap(err, "failed to read violation status")
	}

	fmt.Println()
	return printTable([]string{"Violation status", "Count"}, byStatus, "No violations recorded yet")
}
