package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	CurseForgeAPIKey string `mapstructure:"CURSEFORGE_API_KEY"`
	UserAgent        string `mapstructure:"USERAGENT"`
	DataDir          string `mapstructure:"DATA_DIR"`
	DefaultLoader    string `mapstructure:"DEFAULT_LOADER"`
	GameVersion      string `mapstructure:"GAME_VERSION"`
	DownloadTimeout  int    `mapstructure:"DOWNLOAD_TIMEOUT"` // seconds
	LockTimeout      int    `mapstructure:"LOCK_TIMEOUT"`     // seconds
	DatabasePath     string `mapstructure:"-"`                // Not from env, derived
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()

	for key, env := range map[string]string{
		"curseforge_api_key": "CURSEFORGE_API_KEY",
		"useragent":          "USERAGENT",
		"data_dir":           "DATA_DIR",
		"default_loader":     "DEFAULT_LOADER",
		"game_version":       "GAME_VERSION",
		"download_timeout":   "DOWNLOAD_TIMEOUT",
		"lock_timeout":       "LOCK_TIMEOUT",
	} {
		if bindErr := viper.BindEnv(key, env); bindErr != nil {
			slog.Warn("Unable to bind env var", "var", env, "error", bindErr)
		}
	}

	if vipErr := viper.Unmarshal(&config); vipErr != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vipErr)
	}

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	// Place the database in the data dir for portability
	config.DatabasePath = filepath.Join(config.DataDir, "packsync.db")

	return config, nil
}

// processConfigDefaults fills in defaults for values not supplied by the
// config file or environment.
func processConfigDefaults(cfg *Config) {
	if cfg.DefaultLoader == "" {
		cfg.DefaultLoader = "fabric"
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "packsync/dev (unknown-user)"
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
}

// validateAndEnsureDirectories checks required paths and creates the data
// directory if it is missing.
func validateAndEnsureDirectories(cfg *Config) error {
	if cfg.DataDir == "" {
		slog.Error("DATA_DIR is not set")
		return fmt.Errorf("DATA_DIR is required")
	}

	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		slog.Info("Data directory does not exist, creating it", "path", cfg.DataDir)
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			slog.Error("Failed to create data directory", "path", cfg.DataDir, "error", err)
			return err
		}
	} else if err != nil {
		slog.Error("Failed to check data directory", "path", cfg.DataDir, "error", err)
		return err
	}

	return nil
}
