package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(Config{Component: "test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log == nil {
		t.Fatal("New returned nil logger")
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "catcher.log")

	log, err := New(Config{Level: "debug", Format: "json", Output: path, Component: "test"})
	if err != nil {
		t.Fatalf("New with file output failed: %v", err)
	}

	log.Info("hello", "key", "value")
}

func TestWithComponent(t *testing.T) {
	log, err := New(Config{Component: "base"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	scoped := log.WithComponent("receiver")
	if scoped == nil {
		t.Fatal("WithComponent returned nil")
	}
	if scoped == log {
		t.Error("WithComponent must return a new logger")
	}
}

func TestReportScopes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catcher.log")

	log, err := New(Config{Level: "debug", Format: "json", Output: path, Component: "pipeline"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.WithProject("p1").WithReportID("ev-42").Debug("report processed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, `"project_id":"p1"`) {
		t.Errorf("log line missing project scope: %s", out)
	}
	if !strings.Contains(out, `"report_id":"ev-42"`) {
		t.Errorf("log line missing report scope: %s", out)
	}
}

func TestGlobalFallback(t *testing.T) {
	// Global must be usable even before Initialize.
	if Global() == nil {
		t.Fatal("Global returned nil")
	}
}
