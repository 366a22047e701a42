package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/relset/am"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show or initialise relset configuration",
	Long: sym.AM + ` am — Show or initialise relset configuration

Configuration sources (later overrides earlier):
1. Default values
2. User config (~/.relset/relset.toml)
3. Project config (relset.toml, searched upward from the working directory)
4. Environment variables (RELSET_* prefix, e.g. RELSET_SYNC_MAX_ATTEMPTS)

Examples:
  relset am show                  # Show effective configuration
  relset am show --sources        # Show where every value came from
  relset am init                  # Write ./relset.toml with defaults`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file",
	Long:  "Write a relset.toml with default values. An existing file is rotated to .back1 first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAmInit,
}

var (
	configFormat string
	showSources  bool
	initUser     bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&showSources, "sources", false, "Show the source of every setting")
	amInitCmd.Flags().BoolVar(&initUser, "user", false, "Write ~/.relset/relset.toml instead of ./relset.toml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if showSources {
		settings, err := am.Introspect()
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(settings))
		for _, s := range settings {
			rows = append(rows, []string{s.Key, fmt.Sprintf("%v", s.Value), string(s.Source), s.SourcePath})
		}
		return printTable([]string{"Key", "Value", "Source", "From"}, rows, "No settings")
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	switch configFormat {
	case "json":
		return printJSON(cfg)
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# relset configuration\n%s", data)
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# relset configuration\n%s", data)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	switch {
	case len(args) == 1:
		path = args[0]
	case initUser:
		path = am.UserConfigPath()
		if path == "" {
			return errors.New("could not determine home directory")
		}
	}

	if err := am.WriteDefault(path); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	fmt.Printf("%s Wrote default configuration to %s\n", sym.AM, abs)
	return nil
}
