package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradewatch client.
type Config struct {
	API       API       `yaml:"api"`
	Storage   Storage   `yaml:"storage"`
	Logging   Logging   `yaml:"logging"`
	Portfolio Portfolio `yaml:"portfolio"`
}

// API holds the dashboard backend endpoint configuration.
type API struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Storage holds paths for client-local persistence. The only persisted
// state is the credential slot database.
type Storage struct {
	DBPath string `yaml:"db_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Portfolio configures the paper-trading simulation.
type Portfolio struct {
	StartingCash float64 `yaml:"starting_cash"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads a `.env` file if one exists in the working directory, then the
// YAML configuration file at the given path, and finally applies environment
// variable overrides. A missing config file is not an error; defaults plus
// environment variables apply.
func Load(path string) (*Config, error) {
	// Missing .env is fine; only surface real read errors via godotenv's
	// behaviour of ignoring absent files when none are listed explicitly.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required (or set TRADEWATCH_API_URL)")
	}

	return cfg, nil
}

// defaults returns a Config populated with workable defaults for everything
// except the API base URL, which has no sensible default.
func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		API: API{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Storage: Storage{
			DBPath: filepath.Join(home, ".tradewatch", "tradewatch.db"),
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Portfolio: Portfolio{
			StartingCash: 100000,
		},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADEWATCH_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	if v := os.Getenv("TRADEWATCH_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
