package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 10000 {
		t.Errorf("default port = %d, want 10000", cfg.Server.Port)
	}

	if cfg.Relay.TTL != 90*time.Second {
		t.Errorf("default ttl = %v, want 90s", cfg.Relay.TTL)
	}

	if cfg.Relay.BroadcastMode != "peer" {
		t.Errorf("default broadcast mode = %s, want peer", cfg.Relay.BroadcastMode)
	}

	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "invalid port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Relay.TTL = 0 }, wantErr: true},
		{name: "echo mode", mutate: func(c *Config) { c.Relay.BroadcastMode = "echo" }},
		{name: "unknown mode", mutate: func(c *Config) { c.Relay.BroadcastMode = "shout" }, wantErr: true},
		{name: "zero send queue", mutate: func(c *Config) { c.WebSocket.SendQueue = 0 }, wantErr: true},
		{
			name: "ping not shorter than pong",
			mutate: func(c *Config) {
				c.WebSocket.PingInterval = time.Minute
				c.WebSocket.PongTimeout = time.Minute
			},
			wantErr: true,
		},
		{
			name: "rate limit without rpm",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerMinute = 0
			},
			wantErr: true,
		},
		{name: "metrics without path", mutate: func(c *Config) { c.Metrics.Path = "" }, wantErr: true},
		{name: "sample rate too high", mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("RELAY_TTL", "45s")

	content := `
server:
  port: 9000
relay:
  ttl: ${RELAY_TTL}
  broadcast_mode: echo
websocket:
  allowed_origins:
    - https://app.example
logging:
  level: debug
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Relay.TTL != 45*time.Second {
		t.Errorf("ttl = %v, want 45s", cfg.Relay.TTL)
	}
	if cfg.Relay.BroadcastMode != "echo" {
		t.Errorf("broadcast mode = %s, want echo", cfg.Relay.BroadcastMode)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 1 || cfg.WebSocket.AllowedOrigins[0] != "https://app.example" {
		t.Errorf("allowed origins = %v", cfg.WebSocket.AllowedOrigins)
	}
	// Unset sections keep their defaults.
	if cfg.WebSocket.SendQueue != 64 {
		t.Errorf("send queue = %d, want default 64", cfg.WebSocket.SendQueue)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %s, want default json", cfg.Logging.Format)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("relay:\n  ttl: -5s\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := LoadFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "relay.ttl") {
		t.Errorf("expected ttl validation error, got %v", err)
	}

	if err := os.WriteFile(path, []byte("server: [\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}
