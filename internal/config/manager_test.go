package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerStatus(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
relay:
  ttl: 90s
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	status := mgr.Status()
	if status.Path != path {
		t.Fatalf("Status().Path = %q, want %q", status.Path, path)
	}
	if status.Checksum == "" {
		t.Fatal("Status().Checksum is empty")
	}
	if status.LoadedAt.IsZero() {
		t.Fatal("Status().LoadedAt is zero")
	}
	if status.ReloadCount == 0 {
		t.Fatal("Status().ReloadCount should be > 0")
	}
	if !status.FromFile {
		t.Fatal("Status().FromFile should be true")
	}
}

func TestManagerReloadUpdatesChecksum(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
relay:
  ttl: 90s
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var notified *Config
	mgr.OnChange(func(cfg *Config) { notified = cfg })

	before := mgr.Status()

	if err := os.WriteFile(path, []byte(`
server:
  port: 9090
relay:
  ttl: 30s
  broadcast_mode: echo
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := mgr.Status()
	if after.Checksum == before.Checksum {
		t.Fatal("expected checksum to change after reload")
	}
	if after.ReloadCount != before.ReloadCount+1 {
		t.Fatalf("expected reload count %d, got %d", before.ReloadCount+1, after.ReloadCount)
	}
	if mgr.Get().Server.Port != 9090 {
		t.Fatalf("expected server port 9090, got %d", mgr.Get().Server.Port)
	}
	if notified == nil || notified.Relay.TTL != 30*time.Second {
		t.Fatalf("expected OnChange with ttl 30s, got %+v", notified)
	}
}

func TestManagerReloadKeepsCurrentOnError(t *testing.T) {
	path := writeConfigFile(t, "relay:\n  ttl: 20s\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("relay:\n  broadcast_mode: shout\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if mgr.Get().Relay.TTL != 20*time.Second {
		t.Fatalf("expected ttl to stay 20s, got %v", mgr.Get().Relay.TTL)
	}
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "absent.yaml")

	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr.Get().Relay.TTL != DefaultConfig().Relay.TTL {
		t.Fatalf("expected default ttl, got %v", mgr.Get().Relay.TTL)
	}
	if mgr.Status().FromFile {
		t.Fatal("Status().FromFile should be false")
	}
	if err := mgr.Watch(context.Background()); err == nil {
		t.Fatal("expected Watch to fail without a file")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	path := writeConfigFile(t, "relay:\n  ttl: 20s\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	changed := make(chan *Config, 1)
	mgr.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("relay:\n  ttl: 40s\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Relay.TTL != 40*time.Second {
			t.Fatalf("expected ttl 40s, got %v", cfg.Relay.TTL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
