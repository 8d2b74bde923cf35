// Package config loads ranktime settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries the settings the host application hands to the
// registry and the writers around it.
type Config struct {
	// Application names the participant; it prefixes the run log file.
	Application string `yaml:"application" json:"application"`

	// Run names this particular run inside the log document.
	Run string `yaml:"run" json:"run"`

	// LogDir is where the coordinator writes the JSON run log.
	LogDir string `yaml:"log_dir" json:"log_dir"`

	// StorePath is the SQLite run archive, empty to disable archiving.
	StorePath string `yaml:"store_path" json:"store_path"`

	// Metrics enables the OpenTelemetry metrics recorder.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogDir: ".",
	}
}

// FromFile loads configuration from a file, auto-detecting format by
// extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config, starting from defaults.
func FromYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// FromJSON parses JSON data into a Config, starting from defaults.
func FromJSON(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return cfg, nil
}
