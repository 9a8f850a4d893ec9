package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/rias/internal/config"
)

func writeConfig(t *testing.T, path, logLevel string) {
	t.Helper()
	yaml := strings.Replace(validYAML, "log_level: info", "log_level: "+logLevel, 1)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_DetectsChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	changes := make(chan *config.Config, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- new
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Fatalf("initial log level = %s", got)
	}

	writeConfig(t, path, "debug")

	select {
	case cfg := <-changes:
		if cfg.Server.LogLevel != config.LogDebug {
			t.Fatalf("reloaded log level = %s", cfg.Server.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Fatal("Current() not updated after reload")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	changes := make(chan *config.Config, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- new
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("lavalink: ["), 0o644); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Fatalf("broken config triggered a reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Fatal("invalid file replaced the current config")
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
