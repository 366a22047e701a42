package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/relset/sym"
)

// TemplateCmd represents the template command
var TemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Save and apply rule templates",
	Long: sym.Template + ` template — Save and apply rule templates

A template captures a set's rules without its members. Saving under an
existing name creates the next minor version. Templates are referenced by
id, by name (latest version) or by name@constraint.

Examples:
  relset template save Storm-Main storm-standard
  relset template apply storm-standard Storm-North
  relset template apply "storm-standard@~1.0" Storm-North
  relset template ls`,
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <set> <name>",
	Short: "Save a set's rules as a template",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateSave,
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <template> <set>",
	Short: "Copy a template's rules into a set",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateApply,
}

var templateLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List templates and their versions",
	Args:  cobra.NoArgs,
	RunE:  runTemplateLs,
}

func init() {
	TemplateCmd.AddCommand(templateSaveCmd)
	TemplateCmd.AddCommand(templateApplyCmd)
	TemplateCmd.AddCommand(templateLsCmd)
}

func runTemplateSave(cmd *cobra.Command, args []string) error {
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
	t, err := s.engine.SaveTemplate(ctx, set.ID, args[1])
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Saved %d rules from %s as %s@%s\n", sym.Template, len(t.Rules), set.Name, t.Name, t.Version)
	return nil
}

func runTemplateApply(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	set, err := s.engine.FindSet(ctx, args[1])
	if err != nil {
		return err
	}
	res, err := s.engine.ApplyTemplate(ctx, args[0], set.ID)
	if err != nil {
		return err
	}

	pterm.Success.Printf("%s Applied %d rules from %s@%s to %s\n",
		sym.Template, len(res.Applied), res.Template.Name, res.Template.Version, set.Name)
	for _, rej := range res.Rejected {
		pterm.Warning.Printf("Skipped %s.%s (%s): %v\n", rej.Rule.EntityType, rej.Rule.Field, rej.Rule.Check, rej.Err)
	}
	// Partial application still reports the rejected rules as an error.
	return res.Err()
}

func runTemplateLs(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	templates, err := s.engine.ListTemplates(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []string{t.ID, t.Name, t.Version, strconv.Itoa(len(t.Rules)), shortID(t.SourceSetID), formatTime(t.CreatedAt)})
	}
	return printTable([]string{"ID", "Name", "Version", "Rules", "Source set", "Created"}, rows, "No templates yet")
}
