package commands

import (
	"github.com/spf13/cobra"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// ExportCmd runs one job in the foreground.
var ExportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: sym.Export + " Run one export job in the foreground",
	Long: sym.Export + ` Run one scheduled or failed export job now.

The job goes through the same status transitions as under the scheduler. Do
not run this while the service is executing jobs against the same database:
the job is claimed with a conditional update, so a job that the service
already took is reported and left alone.

Example:
  themis-export export 0b7d3c1e-6f0a-4b53-9a8f-6a1c2d9e4f10`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := contextOf(cmd)
	j, err := a.queue.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if !job.CanTransition(j.Status, job.StatusOngoing) {
		return errors.NewInvalidRequestError("job %s is %s and cannot be executed", j.ID, j.Status)
	}

	if err := a.scheduler.Execute(ctx, j); err != nil {
		return errors.Wrapf(err, "job %s was not executed", j.ID)
	}

	done, err := a.queue.Get(ctx, j.ID)
	if err != nil {
		return err
	}
	printJob(done)
	if done.Status == job.StatusFailure {
		return errors.Newf("export of job %s failed, see the log for details", done.ID)
	}
	return nil
}
