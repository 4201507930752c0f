package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Store.DBPath = filepath.Join(t.TempDir(), "events.db")
	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsMissingAddrs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Receivers.SocketAddr = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = testConfig(t)
	cfg.Receivers.HTTPAddr = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsSameAddr(t *testing.T) {
	cfg := testConfig(t)
	cfg.Receivers.HTTPAddr = cfg.Receivers.SocketAddr
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	cfg := testConfig(t)
	cfg.SourceMaps.CacheTTL = "soon"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsIncompleteWebhook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.Webhooks = []WebhookConfig{{ProjectID: "p1"}}
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "url") {
		t.Errorf("error should name the missing field: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[receivers]
socket_addr = "127.0.0.1:4000"
http_addr = "127.0.0.1:4001"

[store]
db_path = "` + filepath.ToSlash(filepath.Join(dir, "events.db")) + `"

[sourcemaps]
enabled = false
cache_size = 64

[notifications]
enabled = true

[[notifications.webhooks]]
project_id = "p1"
url = "https://hooks.example.com/a"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Receivers.SocketAddr != "127.0.0.1:4000" {
		t.Errorf("socket addr = %q", cfg.Receivers.SocketAddr)
	}
	if cfg.SourceMaps.Enabled {
		t.Error("sourcemaps should be disabled")
	}
	if cfg.SourceMaps.CacheSize != 64 {
		t.Errorf("cache size = %d", cfg.SourceMaps.CacheSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	// Unset fields keep defaults.
	if cfg.Logging.Format != "text" {
		t.Errorf("log format = %q, want default", cfg.Logging.Format)
	}

	hooks := cfg.WebhookMap()
	if got := hooks["p1"]; len(got) != 1 || got[0] != "https://hooks.example.com/a" {
		t.Errorf("webhook map = %v", hooks)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CATCHER_LOG_LEVEL", "warn")
	t.Setenv("CATCHER_DB_PATH", filepath.Join(t.TempDir(), "events.db"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[receivers\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Receivers.SocketAddr = "127.0.0.1:5000"

	path := filepath.Join(dir, "config.toml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Receivers.SocketAddr != "127.0.0.1:5000" {
		t.Errorf("socket addr = %q after round trip", loaded.Receivers.SocketAddr)
	}
}

func TestDurationAccessorsFallBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.SourceMaps.CacheTTL = ""
	if got := cfg.CacheTTL(); got <= 0 {
		t.Errorf("CacheTTL fallback = %v", got)
	}
	cfg.Receivers.ReadTimeout = "bogus"
	if got := cfg.ReadTimeout(); got <= 0 {
		t.Errorf("ReadTimeout fallback = %v", got)
	}
}
