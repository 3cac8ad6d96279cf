package config

import (
	"github.com/spf13/viper"

	"github.com/kanselarij-vlaanderen/themis-export-service/export"
	"github.com/kanselarij-vlaanderen/themis-export-service/notify"
	"github.com/kanselarij-vlaanderen/themis-export-service/scheduler"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendSPARQL = "sparql"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.path", "themis-export.db")

	v.SetDefault("kaleidos.endpoint", "http://kaleidos:8890/sparql")
	v.SetDefault("kaleidos.graph", vocab.KaleidosGraph)
	v.SetDefault("kaleidos.public_graph", vocab.KaleidosPublicGraph)
	v.SetDefault("kaleidos.window_millis", 24*60*60*1000)
	setEndpointDefaults(v, "kaleidos")

	v.SetDefault("store.backend", BackendSPARQL)
	v.SetDefault("store.sparql.endpoint", "http://triplestore:8890/sparql")
	setEndpointDefaults(v, "store.sparql")

	v.SetDefault("target.public_graph", vocab.PublicGraph)
	v.SetDefault("target.task_graph", vocab.TaskGraph)

	v.SetDefault("export.dir", "/share/")
	v.SetDefault("export.batch_size", export.DefaultBatchSize)
	v.SetDefault("export.historic_newsitems", "2006-07-19")
	v.SetDefault("export.historic_announcements", "2016-09-08")
	v.SetDefault("export.historic_documents", "2016-09-08")

	v.SetDefault("jobs.max_retries", 5)

	v.SetDefault("scheduler.cron_pattern", scheduler.DefaultCronPattern)
	v.SetDefault("scheduler.discovery", true)
	v.SetDefault("scheduler.shutdown_grace_seconds", 30)

	v.SetDefault("notify.delta_task", true)
	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.nats_subject", notify.DefaultSubject)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

func setEndpointDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".retries", 3)
	v.SetDefault(prefix+".delay_base_ms", 1000)
	v.SetDefault(prefix+".delay_max_ms", 10000)
	v.SetDefault(prefix+".requests_per_second", 20.0)
	v.SetDefault(prefix+".burst", 5)
	v.SetDefault(prefix+".timeout_seconds", 120)
	v.SetDefault(prefix+".headers", map[string]string{"mu-auth-sudo": "true"})
}

// BindLegacyEnvVars binds the environment variable names used by existing
// deployments of the export service.
func BindLegacyEnvVars(v *viper.Viper) {
	v.BindEnv("kaleidos.endpoint", "THEMIS_EXPORT_KALEIDOS_ENDPOINT", "KALEIDOS_SPARQL_ENDPOINT")
	v.BindEnv("kaleidos.window_millis", "THEMIS_EXPORT_KALEIDOS_WINDOW_MILLIS", "PUBLICATION_WINDOW_MILLIS")
	v.BindEnv("store.sparql.endpoint", "THEMIS_EXPORT_STORE_SPARQL_ENDPOINT", "VIRTUOSO_SPARQL_ENDPOINT")
	v.BindEnv("export.dir", "THEMIS_EXPORT_EXPORT_DIR", "EXPORT_DIR")
	v.BindEnv("export.batch_size", "THEMIS_EXPORT_EXPORT_BATCH_SIZE", "EXPORT_BATCH_SIZE")
	v.BindEnv("scheduler.cron_pattern", "THEMIS_EXPORT_SCHEDULER_CRON_PATTERN", "PUBLICATION_CRON_PATTERN")
	v.BindEnv("notify.nats_url", "THEMIS_EXPORT_NOTIFY_NATS_URL", "NATS_URL")
}
