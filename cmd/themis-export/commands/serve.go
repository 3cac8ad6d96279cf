package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/server"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
	"github.com/kanselarij-vlaanderen/themis-export-service/version"
)

// ServeCmd runs the HTTP API together with the scheduler.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   sym.Pulse + " Run the HTTP API and the export scheduler",
	Long: `Run the export service.

The scheduler ticks on scheduler.cron_pattern (PUBLICATION_CRON_PATTERN). Each
tick polls Kaleidos for publication requests, retries failed jobs and drains
the scheduled jobs oldest first. A job created over the API is picked up
immediately.

SIGINT or SIGTERM stops accepting requests and waits for the running job.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Cleanup()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithSymbol(a.log, sym.PulseOpen).Infow("Starting themis export service",
		"version", version.Get().Version,
		"database", cfg.Database.Path,
		"store", cfg.Store.Backend,
		"export_dir", cfg.Export.Dir,
	)

	a.service.SetTrigger(a.scheduler)
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	srv := server.New(a.service, a.queue, logger.ComponentLogger("http"))
	return srv.Serve(ctx, cfg.Server.Addr,
		time.Duration(cfg.Server.ReadTimeoutSeconds)*time.Second,
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second,
	)
}
