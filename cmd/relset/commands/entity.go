package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/am"
	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/sym"
)

// EntityCmd represents the entity command
var EntityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage the local entity store",
	Long: sym.Entity + ` entity — Manage the local entity store

Sync checks read entities from the local store. Sets and rules never write it.

Examples:
  relset entity import fixtures.toml            # Upsert entities
  relset entity import fixtures.toml --replace  # Replace the whole store
  relset entity get pipe/P-101                  # Show one entity`,
}

var entityImportCmd = &cobra.Command{
	Use:   "import <file.toml>",
	Short: "Import entity fixtures from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityImport,
}

var entityGetCmd = &cobra.Command{
	Use:   "get <type/id>",
	Short: "Show one entity and its outgoing references",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityGet,
}

var importReplace bool

func init() {
	entityImportCmd.Flags().BoolVar(&importReplace, "replace", false, "Clear existing entities before importing")

	EntityCmd.AddCommand(entityImportCmd)
	EntityCmd.AddCommand(entityGetCmd)
}

func runEntityImport(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", args[0])
	}
	defer f.Close()

	n, err := entity.ImportTOML(cmd.Context(), database, f, entity.ImportOptions{Replace: importReplace})
	if err != nil {
		return err
	}
	logger.Infow(sym.Entity+" entities imported", "path", args[0], logger.FieldCount, n, "replace", importReplace)
	pterm.Success.Printf("%s Imported %d entities from %s\n", sym.Entity, n, args[0])
	return nil
}

func runEntityGet(cmd *cobra.Command, args []string) error {
	ref, err := entity.ParseRef(args[0])
	if err != nil {
		return err
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := entity.NewSQLStore(database)
	ctx := cmd.Context()
	rec, err := store.Get(ctx, ref)
	if err != nil {
		return err
	}
	refs, err := store.ForeignKeysOf(ctx, ref)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"ref":    rec.Ref.String(),
		"fields": rec.Fields,
		"refs":   refs,
	})
}
