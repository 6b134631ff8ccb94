// Package config loads the optional cindex.yaml configuration file.
//
// Precedence, lowest to highest: built-in defaults, the config file, the
// CINDEX_DB_PATH environment variable, then CLI flags applied by cmd.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-yaml"
)

// EnvDBPath overrides the database path when set.
const EnvDBPath = "CINDEX_DB_PATH"

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Index    IndexConfig    `yaml:"index"`
}

// DatabaseConfig holds fact-base settings.
type DatabaseConfig struct {
	Path     string `yaml:"path"`      // SQLite database file path
	PoolSize int    `yaml:"pool_size"` // Connection pool size
}

// IndexConfig holds indexing-run settings.
type IndexConfig struct {
	Workers  int      `yaml:"workers"`  // Worker pool size (0 = NumCPU)
	Commit   string   `yaml:"commit"`   // Default commit scope
	Suffixes []string `yaml:"suffixes"` // File suffixes to index
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:     defaultDBPath(),
			PoolSize: 5,
		},
		Index: IndexConfig{
			Workers:  runtime.NumCPU(),
			Commit:   "HEAD",
			Suffixes: []string{".c", ".h"},
		},
	}
}

// Load reads cindex.yaml from the working directory if present, applies the
// environment override, and returns the merged configuration. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "cindex.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if env := os.Getenv(EnvDBPath); env != "" {
		cfg.Database.Path = env
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cindex.db"
	}
	return filepath.Join(home, ".cindex", "index.db")
}
