package config

import (
	"encoding/json"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// Formats accepted by Render.
var Formats = []string{"toml", "json", "yaml"}

// Render prints the effective settings of v, keyed the way they are
// configured.
func Render(v *viper.Viper, format string) ([]byte, error) {
	settings := v.AllSettings()
	switch format {
	case "toml", "":
		data, err := toml.Marshal(settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to TOML")
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to YAML")
		}
		return data, nil
	default:
		return nil, errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
}
