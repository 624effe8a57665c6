package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Create a temporary YAML config file.
	yamlContent := []byte(`
api:
  base_url: "https://api.example.com"
  timeout_seconds: 15
  max_retries: 2
storage:
  db_path: "/tmp/tradewatch/tradewatch.db"
logging:
  level: "info"
  format: "json"
portfolio:
  starting_cash: 50000
`)

	tmpFile, err := os.CreateTemp("", "tradewatch-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("TRADEWATCH_API_URL")
	os.Unsetenv("TRADEWATCH_DB_PATH")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- API --
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://api.example.com")
	}
	if cfg.API.TimeoutSeconds != 15 {
		t.Errorf("API.TimeoutSeconds = %d, want %d", cfg.API.TimeoutSeconds, 15)
	}
	if cfg.API.MaxRetries != 2 {
		t.Errorf("API.MaxRetries = %d, want %d", cfg.API.MaxRetries, 2)
	}

	// -- Storage --
	if cfg.Storage.DBPath != "/tmp/tradewatch/tradewatch.db" {
		t.Errorf("Storage.DBPath = %q, want %q", cfg.Storage.DBPath, "/tmp/tradewatch/tradewatch.db")
	}

	// -- Logging --
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	// -- Portfolio --
	if cfg.Portfolio.StartingCash != 50000 {
		t.Errorf("Portfolio.StartingCash = %f, want %f", cfg.Portfolio.StartingCash, 50000.0)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
api:
  base_url: "https://yaml.example.com"
storage:
  db_path: "/original/tradewatch.db"
logging:
  level: "info"
`)

	tmpFile, err := os.CreateTemp("", "tradewatch-config-env-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	// Set environment overrides.
	os.Setenv("TRADEWATCH_API_URL", "https://env.example.com")
	os.Setenv("LOG_LEVEL", "debug")
	os.Unsetenv("TRADEWATCH_DB_PATH")
	defer os.Unsetenv("TRADEWATCH_API_URL")
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("API.BaseURL = %q, want %q (env override)", cfg.API.BaseURL, "https://env.example.com")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q (env override)", cfg.Logging.Level, "debug")
	}
	// db_path should remain from YAML since no env override was set.
	if cfg.Storage.DBPath != "/original/tradewatch.db" {
		t.Errorf("Storage.DBPath = %q, want %q (from YAML)", cfg.Storage.DBPath, "/original/tradewatch.db")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	os.Setenv("TRADEWATCH_API_URL", "https://env-only.example.com")
	defer os.Unsetenv("TRADEWATCH_API_URL")

	cfg, err := Load("/nonexistent/tradewatch.yaml")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://env-only.example.com" {
		t.Errorf("API.BaseURL = %q, want env value", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("API.TimeoutSeconds = %d, want default 30", cfg.API.TimeoutSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want default json", cfg.Logging.Format)
	}
}

func TestLoadMissingBaseURL(t *testing.T) {
	os.Unsetenv("TRADEWATCH_API_URL")

	if _, err := Load("/nonexistent/tradewatch.yaml"); err == nil {
		t.Fatal("Load() should fail without api.base_url")
	}
}
