package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "/share/", cfg.Export.Dir)
	assert.Equal(t, 1000, cfg.Export.BatchSize)
	assert.Equal(t, 5, cfg.Jobs.MaxRetries)
	assert.Equal(t, "0 * * * * *", cfg.Scheduler.CronPattern)
	assert.Equal(t, BackendSPARQL, cfg.Store.Backend)
	assert.Equal(t, vocab.PublicGraph, cfg.Target.PublicGraph)
	assert.Equal(t, 24*time.Hour, cfg.Kaleidos.Window())
	assert.Equal(t, "true", cfg.Kaleidos.Headers["mu-auth-sudo"])

	historic := cfg.Export.Historic()
	assert.Equal(t, time.Date(2006, 7, 19, 0, 0, 0, 0, time.UTC), historic.NewsItems)
	assert.Equal(t, time.Date(2016, 9, 8, 0, 0, 0, 0, time.UTC), historic.Documents)
}

func TestEndpointConversion(t *testing.T) {
	cfg := defaults(t)
	sc := cfg.Kaleidos.SPARQL()

	assert.Equal(t, "http://kaleidos:8890/sparql", sc.Endpoint)
	assert.Equal(t, 3, sc.Retries)
	assert.Equal(t, time.Second, sc.DelayBase)
	assert.Equal(t, 10*time.Second, sc.DelayMax)
	assert.Equal(t, 2*time.Minute, sc.Timeout)

	s := cfg.SchedulerSettings()
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 30*time.Second, s.ShutdownGrace)

	p := cfg.Pipeline()
	assert.Equal(t, "/share/", p.ExportDir)
	assert.Equal(t, vocab.PublicGraph, p.PublicGraph)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "/data/export.db"

[store]
backend = "sqlite"

[scheduler]
cron_pattern = "*/30 * * * * *"
discovery = false

[export]
batch_size = 250
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/export.db", cfg.Database.Path)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "*/30 * * * * *", cfg.Scheduler.CronPattern)
	assert.False(t, cfg.Scheduler.Discovery)
	assert.Equal(t, 250, cfg.Export.BatchSize)
	assert.Equal(t, "/share/", cfg.Export.Dir, "unset keys keep their default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLegacyEnvironmentVariables(t *testing.T) {
	t.Setenv("EXPORT_DIR", "/exports/")
	t.Setenv("EXPORT_BATCH_SIZE", "500")
	t.Setenv("KALEIDOS_SPARQL_ENDPOINT", "http://kaleidos.example:8890/sparql")
	t.Setenv("PUBLICATION_CRON_PATTERN", "0 */5 * * * *")
	t.Setenv("PUBLICATION_WINDOW_MILLIS", "3600000")

	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "/exports/", cfg.Export.Dir)
	assert.Equal(t, 500, cfg.Export.BatchSize)
	assert.Equal(t, "http://kaleidos.example:8890/sparql", cfg.Kaleidos.Endpoint)
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.CronPattern)
	assert.Equal(t, time.Hour, cfg.Kaleidos.Window())
}

func TestPrefixedEnvironmentVariables(t *testing.T) {
	t.Setenv("THEMIS_EXPORT_DATABASE_PATH", "/var/lib/themis/export.db")
	t.Setenv("THEMIS_EXPORT_JOBS_MAX_RETRIES", "2")

	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/themis/export.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Jobs.MaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"relative kaleidos endpoint", func(c *Config) { c.Kaleidos.Endpoint = "kaleidos/sparql" }},
		{"zero window", func(c *Config) { c.Kaleidos.WindowMillis = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"store endpoint missing", func(c *Config) { c.Store.SPARQL.Endpoint = "" }},
		{"negative retries", func(c *Config) { c.Store.SPARQL.Retries = -1 }},
		{"zero batch size", func(c *Config) { c.Export.BatchSize = 0 }},
		{"malformed date", func(c *Config) { c.Export.HistoricDocuments = "08/09/2016" }},
		{"dates out of order", func(c *Config) { c.Export.HistoricNewsItems = "2020-01-01" }},
		{"negative max retries", func(c *Config) { c.Jobs.MaxRetries = -1 }},
		{"five field cron", func(c *Config) { c.Scheduler.CronPattern = "* * * * *" }},
		{"nats without subject", func(c *Config) { c.Notify.NATSURL = "nats://localhost:4222"; c.Notify.NATSSubject = "" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.modify(cfg)
			err := cfg.Validate()
			assert.True(t, errors.IsInvalidRequestError(err), "got %v", err)
		})
	}
}

func TestValidateAllowsSQLiteWithoutStoreEndpoint(t *testing.T) {
	cfg := defaults(t)
	cfg.Store.Backend = BackendSQLite
	cfg.Store.SPARQL.Endpoint = ""
	cfg.Jobs.MaxRetries = 0
	assert.NoError(t, cfg.Validate())
}

func TestRender(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	data, err := Render(v, "toml")
	require.NoError(t, err)
	var fromTOML map[string]interface{}
	require.NoError(t, toml.Unmarshal(data, &fromTOML))
	assert.Equal(t, "/share/", fromTOML["export"].(map[string]interface{})["dir"])

	data, err = Render(v, "json")
	require.NoError(t, err)
	var fromJSON map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, "0 * * * * *", fromJSON["scheduler"].(map[string]interface{})["cron_pattern"])

	data, err = Render(v, "yaml")
	require.NoError(t, err)
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "sparql", fromYAML["store"].(map[string]interface{})["backend"])

	_, err = Render(v, "ini")
	assert.True(t, errors.IsInvalidRequestError(err))
}
