// Package config provides configuration management for the catcher service.
// Supports TOML configuration files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingValue  = errors.New("missing required configuration value")
)

// Config holds all catcher configuration.
type Config struct {
	// Receivers configuration
	Receivers ReceiversConfig `toml:"receivers"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Source map resolution configuration
	SourceMaps SourceMapsConfig `toml:"sourcemaps"`

	// Notifications configuration
	Notifications NotificationsConfig `toml:"notifications"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// ReceiversConfig holds listen addresses for the two report transports.
type ReceiversConfig struct {
	// SocketAddr is the listen address for the websocket receiver
	SocketAddr string `toml:"socket_addr" env:"CATCHER_SOCKET_ADDR"`

	// HTTPAddr is the listen address for the HTTP receiver
	HTTPAddr string `toml:"http_addr" env:"CATCHER_HTTP_ADDR"`

	// ReadTimeout bounds how long a request body read may take
	ReadTimeout string `toml:"read_timeout" env:"CATCHER_READ_TIMEOUT"`

	// WriteTimeout bounds how long a response write may take
	WriteTimeout string `toml:"write_timeout" env:"CATCHER_WRITE_TIMEOUT"`
}

// StoreConfig holds event storage configuration.
type StoreConfig struct {
	// DBPath is the path to the SQLite database
	DBPath string `toml:"db_path" env:"CATCHER_DB_PATH"`
}

// SourceMapsConfig holds source map fetch and cache configuration.
type SourceMapsConfig struct {
	// Enabled gates source map resolution for browser reports
	Enabled bool `toml:"enabled" env:"CATCHER_SOURCEMAPS_ENABLED"`

	// CacheSize is the maximum number of cached artifacts
	CacheSize int `toml:"cache_size" env:"CATCHER_SOURCEMAPS_CACHE_SIZE"`

	// CacheTTL is how long a cached artifact stays valid
	CacheTTL string `toml:"cache_ttl" env:"CATCHER_SOURCEMAPS_CACHE_TTL"`

	// FetchTimeout bounds a single source map fetch
	FetchTimeout string `toml:"fetch_timeout" env:"CATCHER_SOURCEMAPS_FETCH_TIMEOUT"`
}

// WebhookConfig binds a webhook URL to a project.
type WebhookConfig struct {
	ProjectID string `toml:"project_id"`
	URL       string `toml:"url"`
}

// NotificationsConfig holds notification system configuration.
type NotificationsConfig struct {
	// Enabled controls whether notifications are sent
	Enabled bool `toml:"enabled" env:"CATCHER_NOTIFICATIONS_ENABLED"`

	// RateLimit caps notifications per second (0 = default)
	RateLimit float64 `toml:"rate_limit" env:"CATCHER_NOTIFICATIONS_RATE_LIMIT"`

	// Webhooks maps projects to delivery targets
	Webhooks []WebhookConfig `toml:"webhooks"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `toml:"level" env:"CATCHER_LOG_LEVEL"`

	// Format is the log format (json, text)
	Format string `toml:"format" env:"CATCHER_LOG_FORMAT"`

	// Output is the log output (stdout, stderr, or file path)
	Output string `toml:"output" env:"CATCHER_LOG_OUTPUT"`

	// File is the log file path when output is "file"
	File string `toml:"file" env:"CATCHER_LOG_FILE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Receivers: ReceiversConfig{
			SocketAddr:   "0.0.0.0:3000",
			HTTPAddr:     "0.0.0.0:3001",
			ReadTimeout:  "10s",
			WriteTimeout: "10s",
		},
		Store: StoreConfig{
			DBPath: filepath.Join(homeDir, ".catcher", "events.db"),
		},
		SourceMaps: SourceMapsConfig{
			Enabled:      true,
			CacheSize:    512,
			CacheTTL:     "10m",
			FetchTimeout: "10s",
		},
		Notifications: NotificationsConfig{
			Enabled:   false,
			RateLimit: 10,
			Webhooks:  []WebhookConfig{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File:   "",
		},
	}
}

// ConfigPaths returns the list of default configuration file paths to check.
func ConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		filepath.Join(homeDir, ".catcher", "config.toml"),
		filepath.Join("/etc", "catcher", "config.toml"),
		"./config.toml",
	}
}

// Helper function to validate directory exists or can be created
func validateDirectoryWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("cannot write to directory: %w", err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Receivers.SocketAddr == "" {
		return fmt.Errorf("%w: receivers.socket_addr is required", ErrInvalidConfig)
	}
	if c.Receivers.HTTPAddr == "" {
		return fmt.Errorf("%w: receivers.http_addr is required", ErrInvalidConfig)
	}
	if c.Receivers.SocketAddr == c.Receivers.HTTPAddr {
		return fmt.Errorf("%w: receivers.socket_addr and receivers.http_addr must differ", ErrInvalidConfig)
	}

	for _, field := range []struct{ name, value string }{
		{"receivers.read_timeout", c.Receivers.ReadTimeout},
		{"receivers.write_timeout", c.Receivers.WriteTimeout},
		{"sourcemaps.cache_ttl", c.SourceMaps.CacheTTL},
		{"sourcemaps.fetch_timeout", c.SourceMaps.FetchTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, field.name, err)
		}
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("%w: store.db_path is required", ErrInvalidConfig)
	}
	dbDir := filepath.Dir(c.Store.DBPath)
	if err := validateDirectoryWritable(dbDir); err != nil {
		return fmt.Errorf("%w: store directory %s: %v", ErrInvalidConfig, dbDir, err)
	}

	if c.SourceMaps.CacheSize < 0 {
		return fmt.Errorf("%w: sourcemaps.cache_size cannot be negative", ErrInvalidConfig)
	}

	if c.Notifications.RateLimit < 0 {
		return fmt.Errorf("%w: notifications.rate_limit cannot be negative", ErrInvalidConfig)
	}
	for i, hook := range c.Notifications.Webhooks {
		if hook.ProjectID == "" {
			return fmt.Errorf("%w: notifications.webhooks[%d].project_id is required", ErrInvalidConfig, i)
		}
		if hook.URL == "" {
			return fmt.Errorf("%w: notifications.webhooks[%d].url is required", ErrInvalidConfig, i)
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text", ErrInvalidConfig)
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("%w: logging.output must be one of: stdout, stderr, file", ErrInvalidConfig)
	}

	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("%w: logging.file is required when logging.output is 'file'", ErrInvalidConfig)
	}

	return nil
}

// WebhookMap returns webhooks grouped by project id.
func (c *Config) WebhookMap() map[string][]string {
	m := make(map[string][]string, len(c.Notifications.Webhooks))
	for _, hook := range c.Notifications.Webhooks {
		m[hook.ProjectID] = append(m[hook.ProjectID], hook.URL)
	}
	return m
}

// CacheTTL returns the parsed source map cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.SourceMaps.CacheTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// FetchTimeout returns the parsed source map fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.SourceMaps.FetchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ReadTimeout returns the parsed receiver read timeout.
func (c *Config) ReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Receivers.ReadTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// WriteTimeout returns the parsed receiver write timeout.
func (c *Config) WriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Receivers.WriteTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
