package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanselarij-vlaanderen/themis-export-service/config"
	"github.com/kanselarij-vlaanderen/themis-export-service/version"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	ConfigPath = path
	t.Cleanup(func() { ConfigPath = "" })
}

func TestConfigShowJSON(t *testing.T) {
	writeConfig(t, "[jobs]\nmax_retries = 2\n")
	configFormat = "json"
	t.Cleanup(func() { configFormat = "toml" })

	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	t.Cleanup(func() { configShowCmd.SetOut(nil) })
	require.NoError(t, runConfigShow(configShowCmd, nil))

	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &settings), out.String())
	jobs := settings["jobs"].(map[string]interface{})
	assert.EqualValues(t, 2, jobs["max_retries"])
}

func TestConfigValidate(t *testing.T) {
	writeConfig(t, "[scheduler]\ncron_pattern = \"every minute\"\n")

	var out bytes.Buffer
	configValidateCmd.SetOut(&out)
	t.Cleanup(func() { configValidateCmd.SetOut(nil) })
	err := runConfigValidate(configValidateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Empty(t, out.String())
}

func TestNewAppWithSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "themis-export.db")
	writeConfig(t, "[database]\npath = \""+dbPath+"\"\n\n[store]\nbackend = \"sqlite\"\n")

	_, cfg, err := loadConfig()
	require.NoError(t, err)
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.scheduler)
	assert.NotNil(t, a.pipeline)
	assert.Nil(t, a.nc)

	summary, err := a.queue.Summary(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary, 4)
}

func TestVersionJSON(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	t.Cleanup(func() { VersionCmd.SetOut(nil) })
	require.NoError(t, VersionCmd.Flags().Set("json", "true"))
	t.Cleanup(func() { VersionCmd.Flags().Set("json", "false") })

	require.NoError(t, VersionCmd.RunE(VersionCmd, nil))
	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}
