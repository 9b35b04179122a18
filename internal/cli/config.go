package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the vellum CLI configuration file.
type Config struct {
	// CatalogPath is where the bundle registry database lives. Empty means
	// no catalog: every command still works, nothing is retained.
	CatalogPath string `yaml:"catalog_path"`
}

// LoadConfig reads the YAML config at path. An empty path returns the zero
// config; a missing file at an explicit path is an error (pointing at a
// config that is not there should not silently mean defaults).
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
