package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.DefaultLoader != "fabric" {
			t.Errorf("Expected DefaultLoader to be fabric, got %s", cfg.DefaultLoader)
		}
		if cfg.DownloadTimeout != 60 {
			t.Errorf("Expected DownloadTimeout to be 60, got %d", cfg.DownloadTimeout)
		}
		if cfg.LockTimeout != 30 {
			t.Errorf("Expected LockTimeout to be 30, got %d", cfg.LockTimeout)
		}
		if cfg.UserAgent == "" {
			t.Error("Expected UserAgent to have a default value")
		}
	})

	t.Run("respects existing values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{
			DefaultLoader:   "forge",
			DownloadTimeout: 120,
			LockTimeout:     5,
			UserAgent:       "custom-agent",
		}
		processConfigDefaults(&cfg)

		if cfg.DefaultLoader != "forge" {
			t.Errorf("Expected DefaultLoader to stay forge, got %s", cfg.DefaultLoader)
		}
		if cfg.DownloadTimeout != 120 {
			t.Errorf("Expected DownloadTimeout to stay 120, got %d", cfg.DownloadTimeout)
		}
		if cfg.LockTimeout != 5 {
			t.Errorf("Expected LockTimeout to stay 5, got %d", cfg.LockTimeout)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing data dir", func(t *testing.T) {
		cfg := Config{DataDir: ""}
		err := validateAndEnsureDirectories(&cfg)
		if err == nil {
			t.Error("Expected error for missing DataDir")
		}
	})

	t.Run("creates data directory", func(t *testing.T) {
		dataDir := filepath.Join(tmpDir, "data")
		cfg := Config{DataDir: dataDir}
		err := validateAndEnsureDirectories(&cfg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if _, err := os.Stat(dataDir); os.IsNotExist(err) {
			t.Error("Data directory was not created")
		}
	})
}
