package config

import (
	"net/url"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/scheduler"
)

// Validate checks that the configuration is usable. Errors match
// ErrInvalidRequest.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.NewInvalidRequestError("database.path cannot be empty")
	}

	if err := validateEndpoint("kaleidos", c.Kaleidos.EndpointConfig); err != nil {
		return err
	}
	if c.Kaleidos.WindowMillis <= 0 {
		return errors.NewInvalidRequestError("kaleidos.window_millis must be > 0, got %d", c.Kaleidos.WindowMillis)
	}

	switch c.Store.Backend {
	case BackendSQLite:
	case BackendSPARQL:
		if err := validateEndpoint("store.sparql", c.Store.SPARQL); err != nil {
			return err
		}
	default:
		return errors.NewInvalidRequestError("store.backend must be %q or %q, got %q", BackendSQLite, BackendSPARQL, c.Store.Backend)
	}

	if c.Target.PublicGraph == "" {
		return errors.NewInvalidRequestError("target.public_graph cannot be empty")
	}

	if c.Export.Dir == "" {
		return errors.NewInvalidRequestError("export.dir cannot be empty")
	}
	if c.Export.BatchSize <= 0 {
		return errors.NewInvalidRequestError("export.batch_size must be > 0, got %d", c.Export.BatchSize)
	}
	dates := []struct{ key, value string }{
		{"export.historic_newsitems", c.Export.HistoricNewsItems},
		{"export.historic_announcements", c.Export.HistoricAnnouncements},
		{"export.historic_documents", c.Export.HistoricDocuments},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d.value); err != nil {
			return errors.NewInvalidRequestError("%s must be a date like 2016-09-08, got %q", d.key, d.value)
		}
	}
	historic := c.Export.Historic()
	if historic.Announcements.Before(historic.NewsItems) || historic.Documents.Before(historic.NewsItems) {
		return errors.NewInvalidRequestError("export.historic_newsitems must not be later than the announcements and documents dates")
	}

	// zero retries is valid: failed jobs stay failed
	if c.Jobs.MaxRetries < 0 {
		return errors.NewInvalidRequestError("jobs.max_retries must be >= 0, got %d", c.Jobs.MaxRetries)
	}

	if _, err := scheduler.ParseCronPattern(c.Scheduler.CronPattern); err != nil {
		return errors.Wrap(err, "scheduler.cron_pattern")
	}
	if c.Scheduler.ShutdownGraceSeconds < 0 {
		return errors.NewInvalidRequestError("scheduler.shutdown_grace_seconds must be >= 0, got %d", c.Scheduler.ShutdownGraceSeconds)
	}

	if c.Notify.NATSURL != "" && c.Notify.NATSSubject == "" {
		return errors.NewInvalidRequestError("notify.nats_subject cannot be empty when notify.nats_url is set")
	}

	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			return errors.NewInvalidRequestError("log.level: %v", err)
		}
	}
	return nil
}

func validateEndpoint(key string, e EndpointConfig) error {
	if err := absoluteURL(key+".endpoint", e.Endpoint); err != nil {
		return err
	}
	if e.UpdateEndpoint != "" {
		if err := absoluteURL(key+".update_endpoint", e.UpdateEndpoint); err != nil {
			return err
		}
	}
	if e.Retries < 0 {
		return errors.NewInvalidRequestError("%s.retries must be >= 0, got %d", key, e.Retries)
	}
	if e.DelayBaseMS < 0 || e.DelayMaxMS < 0 {
		return errors.NewInvalidRequestError("%s delays must be >= 0", key)
	}
	if e.RequestsPerSecond < 0 {
		return errors.NewInvalidRequestError("%s.requests_per_second must be >= 0, got %f", key, e.RequestsPerSecond)
	}
	return nil
}

func absoluteURL(key, value string) error {
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewInvalidRequestError("%s must be an absolute URL, got %q", key, value)
	}
	return nil
}
