package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heron.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Tier != domain.TierCommunity {
			t.Errorf("expected community tier, got %s", cfg.Tier)
		}
		if cfg.Repository.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
		}
		if cfg.EventBus.Type != "channel" {
			t.Errorf("expected channel bus, got %s", cfg.EventBus.Type)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
		}
	})

	t.Run("EmptyPath", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Tier != domain.TierCommunity {
			t.Errorf("expected community tier, got %s", cfg.Tier)
		}
	})
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
policy:
  path: /etc/heron/packages.json
repository:
  driver: sqlite
  sqlite_path: /var/lib/heron/heron.db
cache:
  local_ttl: 60
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Policy.Path != "/etc/heron/packages.json" {
		t.Errorf("unexpected policy path: %s", cfg.Policy.Path)
	}
	if cfg.Repository.SQLitePath != "/var/lib/heron/heron.db" {
		t.Errorf("unexpected sqlite path: %s", cfg.Repository.SQLitePath)
	}
	if cfg.Cache.LocalTTL != 60*time.Second {
		t.Errorf("expected 60s local TTL, got %s", cfg.Cache.LocalTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}

	// Unset fields keep tier defaults
	if cfg.Server.ReadTimeout != 30 {
		t.Errorf("expected default read timeout 30, got %d", cfg.Server.ReadTimeout)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("expected channel bus default, got %s", cfg.EventBus.Type)
	}
}

func TestLoadProTier(t *testing.T) {
	path := writeConfig(t, `
tier: pro
cache:
  redis_addr: redis.internal:6379
event_bus:
  nats_url: nats://nats.internal:4222
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("expected postgres driver for pro tier, got %s", cfg.Repository.Driver)
	}
	if cfg.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.Cache.RedisAddr)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("expected nats bus for pro tier, got %s", cfg.EventBus.Type)
	}
	if cfg.EventBus.NATSUrl != "nats://nats.internal:4222" {
		t.Errorf("unexpected NATS url: %s", cfg.EventBus.NATSUrl)
	}
	if !cfg.Tracing.Enabled {
		t.Error("expected tracing enabled for pro tier")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: warn
`)

	t.Setenv("HERON_PORT", "7070")
	t.Setenv("HERON_POSTGRES_PASSWORD", "secret")
	t.Setenv("HERON_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070 to win, got %d", cfg.Server.Port)
	}
	if cfg.Repository.PostgresPassword != "secret" {
		t.Error("expected postgres password from environment")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected HERON_DEBUG to force debug level, got %s", cfg.Logging.Level)
	}
}

func TestEnvTierWinsOverFile(t *testing.T) {
	path := writeConfig(t, "tier: community\n")

	t.Setenv("HERON_TIER", "pro")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected env tier to win, got %s", cfg.Tier)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range cases {
		if got := LogLevel(input); got != want {
			t.Errorf("LogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
