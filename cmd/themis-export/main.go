package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanselarij-vlaanderen/themis-export-service/cmd/themis-export/commands"
)

var rootCmd = &cobra.Command{
	Use:   "themis-export",
	Short: "Themis export - publishes Kaleidos meetings to Themis",
	Long: `Themis export - turns Kaleidos meetings into public Themis snapshots.

A publication request schedules an export job. The scheduler runs jobs one
at a time: it copies the public part of a meeting into a staging graph,
rewrites it into a public graph and writes the result to TTL files for the
downstream delta producer.

Available commands:
  serve   - Run the HTTP API and the scheduler
  job     - Inspect and create export jobs
  export  - Run one export job in the foreground
  config  - Show and validate the configuration
  version - Show version information

Examples:
  themis-export serve                  # Run the service
  themis-export job ls --status failure
  themis-export job create 5F6B0A0E --scope newsitems
  themis-export config show --format yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&commands.ConfigPath, "config", "c", "", "Configuration file (default: search /etc/themis-export, ~/.themis-export and the working directory)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
