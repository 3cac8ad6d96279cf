package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// JobCmd groups the job management commands.
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: sym.Pulse + " Inspect and create export jobs",
	Long: sym.Pulse + ` Export job management.

Jobs move from scheduled to ongoing to success or failure. Failed jobs are
retried by the scheduler until jobs.max_retries is reached. Jobs are never
deleted.

  themis-export job ls              # List all jobs
  themis-export job status <id>     # Show job details
  themis-export job summary         # Count jobs per status
  themis-export job create <uuid>   # Schedule the export of a meeting`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List export jobs, oldest first",
	RunE:  runJobLs,
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the details of an export job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

var jobSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count export jobs per status",
	RunE:  runJobSummary,
}

var jobCreateCmd = &cobra.Command{
	Use:   "create <meeting-uuid>",
	Short: "Schedule the export of a Kaleidos meeting",
	Long: `Schedule the export of a Kaleidos meeting. The running service picks
the job up on its next tick.

Example:
  themis-export job create 5F6B0A0E --scope newsitems --scope documents`,
	Args: cobra.ExactArgs(1),
	RunE: runJobCreate,
}

func init() {
	jobLsCmd.Flags().String("status", "", "Filter by status (scheduled, ongoing, success, failure)")
	jobLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display (0 for all)")
	jobCreateCmd.Flags().StringSlice("scope", nil, "Scope to publish (newsitems, documents)")
	jobCreateCmd.Flags().String("source", "", "URI of the publication activity that requested the export")

	JobCmd.AddCommand(jobLsCmd)
	JobCmd.AddCommand(jobStatusCmd)
	JobCmd.AddCommand(jobSummaryCmd)
	JobCmd.AddCommand(jobCreateCmd)
}

func runJobLs(cmd *cobra.Command, args []string) error {
	statusFilter, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := job.Filter{Limit: limit}
	if statusFilter != "" {
		status, err := job.ParseStatus(statusFilter)
		if err != nil {
			return err
		}
		filter.Status = &status
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.queue.List(contextOf(cmd), filter)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Printf("%s No jobs found\n", sym.Pulse)
		return nil
	}

	fmt.Printf("%-36s %-10s %-5s %-26s %s\n", "JOB ID", "STATUS", "RETRY", "SCOPE", "CREATED")
	fmt.Printf("%-36s %-10s %-5s %-26s %s\n", "------", "------", "-----", "-----", "-------")
	for _, j := range jobs {
		fmt.Printf("%-36s %-10s %-5d %-26s %s\n",
			j.ID,
			j.Status,
			j.RetryCount,
			strings.Join(j.ScopeLabels(), ","),
			j.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	j, err := a.queue.Get(contextOf(cmd), args[0])
	if err != nil {
		return err
	}
	printJob(j)
	return nil
}

func printJob(j *job.Job) {
	fmt.Printf("%s Job ID: %s\n", sym.Pulse, j.ID)
	fmt.Printf("  URI: %s\n", j.URI)
	fmt.Printf("  Meeting: %s\n", j.Meeting)
	fmt.Printf("  Status: %s\n", j.Status)
	if len(j.Scope) > 0 {
		fmt.Printf("  Scope: %s\n", strings.Join(j.ScopeLabels(), ", "))
	}
	if j.Source != "" {
		fmt.Printf("  Source: %s\n", j.Source)
	}
	fmt.Printf("  Retries: %d\n", j.RetryCount)
	fmt.Printf("  Created: %s\n", j.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Modified: %s\n", j.ModifiedAt.Local().Format("2006-01-02 15:04:05"))
	for _, resource := range j.Generated {
		fmt.Printf("  Generated: %s\n", resource)
	}
}

func runJobSummary(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.queue.Summary(contextOf(cmd))
	if err != nil {
		return err
	}
	for _, entry := range summary {
		fmt.Printf("%-10s %d\n", entry.Status, entry.Count)
	}
	return nil
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	scope, _ := cmd.Flags().GetStringSlice("scope")
	source, _ := cmd.Flags().GetString("source")

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	j, err := a.service.Create(contextOf(cmd), job.CreateRequest{
		MeetingID: args[0],
		Scope:     scope,
		Source:    source,
		Origin:    job.OriginCLI,
	})
	if err != nil {
		return err
	}
	printJob(j)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
