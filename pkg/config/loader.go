// Package config provides configuration loading and management for the catcher service.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from a file path
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If path is empty, search for default config files
	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	// If no config file found, warn and return defaults
	if path == "" {
		log.Printf("Warning: No configuration file found in default locations")
		for _, p := range ConfigPaths() {
			log.Printf("  - %s", p)
		}
		log.Printf("Using default configuration")
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse TOML using BurntSushi/toml library
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDie loads configuration or exits on error
func LoadOrDie(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Receiver overrides
	if v := os.Getenv("CATCHER_SOCKET_ADDR"); v != "" {
		cfg.Receivers.SocketAddr = v
	}
	if v := os.Getenv("CATCHER_HTTP_ADDR"); v != "" {
		cfg.Receivers.HTTPAddr = v
	}
	if v := os.Getenv("CATCHER_READ_TIMEOUT"); v != "" {
		cfg.Receivers.ReadTimeout = v
	}
	if v := os.Getenv("CATCHER_WRITE_TIMEOUT"); v != "" {
		cfg.Receivers.WriteTimeout = v
	}

	// Store overrides
	if v := os.Getenv("CATCHER_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}

	// Source map overrides
	if v := os.Getenv("CATCHER_SOURCEMAPS_ENABLED"); v != "" {
		cfg.SourceMaps.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CATCHER_SOURCEMAPS_CACHE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.SourceMaps.CacheSize = size
		}
	}
	if v := os.Getenv("CATCHER_SOURCEMAPS_CACHE_TTL"); v != "" {
		cfg.SourceMaps.CacheTTL = v
	}
	if v := os.Getenv("CATCHER_SOURCEMAPS_FETCH_TIMEOUT"); v != "" {
		cfg.SourceMaps.FetchTimeout = v
	}

	// Notification overrides
	if v := os.Getenv("CATCHER_NOTIFICATIONS_ENABLED"); v != "" {
		cfg.Notifications.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CATCHER_NOTIFICATIONS_RATE_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Notifications.RateLimit = limit
		}
	}

	// Logging overrides
	if v := os.Getenv("CATCHER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CATCHER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CATCHER_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("CATCHER_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

// Save saves the configuration to a file
func Save(cfg *Config, path string) error {
	// Validate before saving
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Normalize paths for TOML compatibility (forward slashes, no backslashes)
	cfgCopy := *cfg
	cfgCopy.Store.DBPath = filepath.ToSlash(cfg.Store.DBPath)
	if cfgCopy.Logging.File != "" {
		cfgCopy.Logging.File = filepath.ToSlash(cfgCopy.Logging.File)
	}

	// Marshal to TOML using BurntSushi/toml library
	data, err := toml.Marshal(&cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateExampleConfig generates an example configuration file
func GenerateExampleConfig(path string) error {
	cfg := DefaultConfig()

	// Add example values
	cfg.Notifications.Enabled = true
	cfg.Notifications.Webhooks = []WebhookConfig{
		{ProjectID: "00000000-0000-0000-0000-000000000000", URL: "https://hooks.example.com/catcher"},
	}
	cfg.Logging.Level = "info"

	return Save(cfg, path)
}
