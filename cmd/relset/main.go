package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/relset/am"
	"github.com/teranos/relset/cmd/relset/commands"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/sym"
)

var rootCmd = &cobra.Command{
	Use:   "relset",
	Short: "relset - Compliance rules over relationship sets",
	Long: `relset - Compliance rules over relationship sets.

Group engineering entities into named sets, attach field-level rules,
and run sync checks that track violations through their lifecycle.

Operators:
` + sym.Palette() + `
Also:
  member    - Add static members and filter groups
  db        - Database statistics

Examples:
  relset set create Storm-Main --category drainage
  relset member filter Storm-Main pipe '{"op":"eq","field":"network","value":"storm"}'
  relset rule add Storm-Main --type pipe --field material --check in_list --list PVC,HDPE,RCP
  relset sync run Storm-Main
  relset violation ls Storm-Main --status open`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.EntityCmd)
	rootCmd.AddCommand(commands.SetCmd)
	rootCmd.AddCommand(commands.MemberCmd)
	rootCmd.AddCommand(commands.RuleCmd)
	rootCmd.AddCommand(commands.SyncCmd)
	rootCmd.AddCommand(commands.ViolationCmd)
	rootCmd.AddCommand(commands.TemplateCmd)
	rootCmd.AddCommand(commands.VersionCmd)

	for _, c := range rootCmd.Commands() {
		c.Short = sym.Decorate(c.Name(), c.Short)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}
