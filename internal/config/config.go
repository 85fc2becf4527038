// Package config loads the optional .covenant.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Filename is the project config file looked up at the project root.
const Filename = ".covenant.yaml"

// Config is the project-level configuration. Every field is optional;
// command-line flags override whatever is set here.
type Config struct {
	// ManifestDir is the directory holding task manifests.
	ManifestDir string `yaml:"manifestDir"`
	// SourceRoot is the root of the source tree for tracking analysis.
	SourceRoot string `yaml:"sourceRoot"`
	// Ignore lists doublestar globs excluded from tracking analysis.
	Ignore []string `yaml:"ignore"`
	// GraphDB is the default path for the persisted knowledge graph.
	GraphDB string `yaml:"graphDB"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ManifestDir: "manifests",
		SourceRoot:  ".",
		GraphDB:     "covenant.db",
	}
}

// Load reads the config file at dir, falling back to defaults when the
// file is absent. A present but malformed file is an error.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", Filename, err)
	}
	return cfg, nil
}
