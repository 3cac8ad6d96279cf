// Package config loads the export service configuration.
//
// Values come from, in increasing precedence: defaults, TOML files
// (/etc/themis-export, $HOME/.themis-export, the working directory or an
// explicit --config path), THEMIS_EXPORT_* environment variables and the
// environment variable names of the original deployment (EXPORT_DIR,
// KALEIDOS_SPARQL_ENDPOINT, ...).
package config

import (
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/pipeline"
	"github.com/kanselarij-vlaanderen/themis-export-service/scheduler"
	"github.com/kanselarij-vlaanderen/themis-export-service/sparql"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kaleidos  KaleidosConfig  `mapstructure:"kaleidos"`
	Store     StoreConfig     `mapstructure:"store"`
	Target    TargetConfig    `mapstructure:"target"`
	Export    ExportConfig    `mapstructure:"export"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr                   string `mapstructure:"addr"`
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// DatabaseConfig configures the SQLite database holding jobs and, with the
// sqlite store backend, the quads.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EndpointConfig configures one SPARQL endpoint.
type EndpointConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	UpdateEndpoint string `mapstructure:"update_endpoint"`
	Retries        int    `mapstructure:"retries"`
	// linear backoff: wait attempt × delay_base_ms, at most delay_max_ms
	DelayBaseMS       int               `mapstructure:"delay_base_ms"`
	DelayMaxMS        int               `mapstructure:"delay_max_ms"`
	RetryStatusCodes  []int             `mapstructure:"retry_status_codes"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Burst             int               `mapstructure:"burst"`
	TimeoutSeconds    int               `mapstructure:"timeout_seconds"`
	Headers           map[string]string `mapstructure:"headers"`
}

// KaleidosConfig configures the source system.
type KaleidosConfig struct {
	EndpointConfig `mapstructure:",squash"`

	Graph       string `mapstructure:"graph"`
	PublicGraph string `mapstructure:"public_graph"`
	// WindowMillis is how far back publication requests are discovered.
	WindowMillis int64 `mapstructure:"window_millis"`
}

// StoreConfig selects where staging and public graphs live.
type StoreConfig struct {
	// Backend is "sqlite" (the service database) or "sparql".
	Backend string         `mapstructure:"backend"`
	SPARQL  EndpointConfig `mapstructure:"sparql"`
}

// TargetConfig names the graphs written to.
type TargetConfig struct {
	PublicGraph string `mapstructure:"public_graph"`
	TaskGraph   string `mapstructure:"task_graph"`
}

// ExportConfig configures the export files.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	BatchSize int    `mapstructure:"batch_size"`
	// Historic dates (YYYY-MM-DD) from which each part of a meeting is
	// published.
	HistoricNewsItems     string `mapstructure:"historic_newsitems"`
	HistoricAnnouncements string `mapstructure:"historic_announcements"`
	HistoricDocuments     string `mapstructure:"historic_documents"`
}

type JobsConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// SchedulerConfig configures the periodic tick.
type SchedulerConfig struct {
	CronPattern          string `mapstructure:"cron_pattern"`
	Discovery            bool   `mapstructure:"discovery"`
	ShutdownGraceSeconds int    `mapstructure:"shutdown_grace_seconds"`
}

// NotifyConfig configures the downstream notifications.
type NotifyConfig struct {
	DeltaTask   bool   `mapstructure:"delta_task"`
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// SPARQL returns the client configuration of the endpoint.
func (e EndpointConfig) SPARQL() sparql.Config {
	return sparql.Config{
		Endpoint:          e.Endpoint,
		UpdateEndpoint:    e.UpdateEndpoint,
		Retries:           e.Retries,
		DelayBase:         time.Duration(e.DelayBaseMS) * time.Millisecond,
		DelayMax:          time.Duration(e.DelayMaxMS) * time.Millisecond,
		RetryStatusCodes:  e.RetryStatusCodes,
		RequestsPerSecond: e.RequestsPerSecond,
		Burst:             e.Burst,
		Timeout:           time.Duration(e.TimeoutSeconds) * time.Second,
		Headers:           e.Headers,
	}
}

// Window returns the discovery window.
func (k KaleidosConfig) Window() time.Duration {
	return time.Duration(k.WindowMillis) * time.Millisecond
}

// Historic parses the historic dates. Call Validate first.
func (e ExportConfig) Historic() pipeline.HistoricDates {
	defaults := pipeline.DefaultHistoricDates()
	return pipeline.HistoricDates{
		NewsItems:     parseDate(e.HistoricNewsItems, defaults.NewsItems),
		Announcements: parseDate(e.HistoricAnnouncements, defaults.Announcements),
		Documents:     parseDate(e.HistoricDocuments, defaults.Documents),
	}
}

// Pipeline returns the transform pipeline settings.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		ExportDir:   c.Export.Dir,
		PublicGraph: c.Target.PublicGraph,
		Historic:    c.Export.Historic(),
	}
}

// SchedulerSettings returns the scheduler settings.
func (c *Config) SchedulerSettings() scheduler.Config {
	return scheduler.Config{
		MaxRetries:    c.Jobs.MaxRetries,
		CronPattern:   c.Scheduler.CronPattern,
		ShutdownGrace: time.Duration(c.Scheduler.ShutdownGraceSeconds) * time.Second,
	}
}

const dateLayout = "2006-01-02"

func parseDate(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fallback
	}
	return t
}
