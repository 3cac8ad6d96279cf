package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// EnvPrefix prefixes every environment variable override, e.g.
// THEMIS_EXPORT_DATABASE_PATH.
const EnvPrefix = "THEMIS_EXPORT"

// FileName is the configuration file looked up in the config directories.
const FileName = "themis-export.toml"

// NewViper returns a viper instance with defaults, environment bindings and
// the configuration files merged in precedence order. An explicit path
// replaces the lookup and must exist.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindLegacyEnvVars(v)
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		return v, nil
	}

	for _, candidate := range SearchPaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config file %s", candidate)
		}
	}
	return v, nil
}

// SearchPaths lists the configuration files, lowest precedence first.
func SearchPaths() []string {
	paths := []string{filepath.Join("/etc/themis-export", FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".themis-export", FileName))
	}
	return append(paths, FileName)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile is NewViper followed by Load.
func LoadFile(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return Load(v)
}
