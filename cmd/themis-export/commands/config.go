package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanselarij-vlaanderen/themis-export-service/config"
	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// ConfigCmd shows and checks the configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and validate the configuration",
	Long: `Show and validate the export service configuration.

Configuration sources (in order of precedence):
1. THEMIS_EXPORT_* environment variables (e.g. THEMIS_EXPORT_EXPORT_DIR)
2. Legacy environment variables (EXPORT_DIR, KALEIDOS_SPARQL_ENDPOINT, ...)
3. The file given with --config
4. ./themis-export.toml, ~/.themis-export/themis-export.toml,
   /etc/themis-export/themis-export.toml
5. Default values

Examples:
  themis-export config show                # Show the effective configuration
  themis-export config show --format json
  themis-export config validate
  themis-export config where`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "List the configuration files that are looked for",
	RunE:  runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(ConfigPath)
	if err != nil {
		return err
	}
	data, err := config.Render(v, configFormat)
	if err != nil {
		return err
	}
	if configFormat != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "# themis export configuration")
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(ConfigPath)
	if err != nil {
		return err
	}
	if _, err := config.Load(v); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if ConfigPath != "" {
		fmt.Fprintf(out, "%s (--config)\n", describeFile(ConfigPath))
		return nil
	}
	for _, path := range config.SearchPaths() {
		fmt.Fprintln(out, describeFile(path))
	}
	return nil
}

func describeFile(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "  ✗ " + path
	}
	return "  ✓ " + path
}
