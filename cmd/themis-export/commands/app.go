package commands

import (
	"database/sql"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/config"
	"github.com/kanselarij-vlaanderen/themis-export-service/db"
	"github.com/kanselarij-vlaanderen/themis-export-service/discovery"
	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/export"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/notify"
	"github.com/kanselarij-vlaanderen/themis-export-service/pipeline"
	"github.com/kanselarij-vlaanderen/themis-export-service/scheduler"
	"github.com/kanselarij-vlaanderen/themis-export-service/snapshot"
	"github.com/kanselarij-vlaanderen/themis-export-service/sparql"
)

// ConfigPath is set by the --config flag of the root command.
var ConfigPath string

// loadConfig reads and validates the configuration, then initializes the
// global logger from it.
func loadConfig() (*viper.Viper, *config.Config, error) {
	v, err := config.NewViper(ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitializeWithLevel(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize logger")
	}
	return v, cfg, nil
}

// app holds the wired components. Commands that only read jobs use the
// queue; serve and export use everything.
type app struct {
	db        *sql.DB
	queue     *job.Queue
	service   *job.Service
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	nc        *nats.Conn
	log       *zap.SugaredLogger
}

// openQueue opens the job database only.
func openQueue(cfg *config.Config) (*app, error) {
	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	return &app{
		db:    database,
		queue: job.NewQueue(database),
		log:   logger.Logger,
	}, nil
}

// newApp wires the complete export service.
func newApp(cfg *config.Config) (*app, error) {
	a, err := openQueue(cfg)
	if err != nil {
		return nil, err
	}

	var store snapshot.Store
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store = snapshot.NewSQLStore(a.db, logger.ComponentLogger("store"))
	default:
		endpoint := sparql.New(cfg.Store.SPARQL.SPARQL(), logger.ComponentLogger("triplestore"))
		store = snapshot.NewSPARQLStore(endpoint, logger.ComponentLogger("store"))
	}

	source := kaleidos.NewSPARQLSource(
		sparql.New(cfg.Kaleidos.SPARQL(), logger.ComponentLogger("kaleidos-sparql")),
		kaleidos.Graphs{Kanselarij: cfg.Kaleidos.Graph, Public: cfg.Kaleidos.PublicGraph},
		logger.ComponentLogger("kaleidos"),
	)

	var notifiers notify.Multi
	if cfg.Notify.DeltaTask {
		notifiers = append(notifiers, notify.NewDeltaTaskNotifier(store, cfg.Target.TaskGraph, cfg.Export.Dir, logger.ComponentLogger("notify")))
	}
	if cfg.Notify.NATSURL != "" {
		nc, err := notify.Connect(cfg.Notify.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nc = nc
		notifiers = append(notifiers, notify.NewNATSNotifier(nc, cfg.Notify.NATSSubject, logger.ComponentLogger("notify")))
	}

	exporter := export.NewBulkExporter(store, cfg.Export.BatchSize, logger.ComponentLogger("export"))
	a.pipeline = pipeline.New(source, store, exporter, notifiers, cfg.Pipeline(), logger.ComponentLogger("pipeline"))
	a.service = job.NewService(a.queue, source, nil, logger.ComponentLogger("jobs"))

	var disc scheduler.Discoverer
	if cfg.Scheduler.Discovery {
		disc = discovery.New(source, a.queue, cfg.Kaleidos.Window(), logger.ComponentLogger("discovery"))
	}
	a.scheduler = scheduler.New(a.queue, a.pipeline, disc, a.service, cfg.SchedulerSettings(), logger.ComponentLogger("scheduler"))
	return a, nil
}

func (a *app) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warnw("Failed to drain NATS connection", logger.FieldError, err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warnw("Failed to close database", logger.FieldError, err)
	}
}
