// Package config loads Heron configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opensource-health/heron/internal/domain"
)

// fileConfig mirrors the YAML configuration schema. Zero values mean
// "not set"; tier defaults fill the gaps.
type fileConfig struct {
	Server struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		ReadTimeout  int    `yaml:"read_timeout"`
		WriteTimeout int    `yaml:"write_timeout"`
	} `yaml:"server"`

	Tier string `yaml:"tier"`

	Policy struct {
		Path string `yaml:"path"`
	} `yaml:"policy"`

	Repository struct {
		Driver           string `yaml:"driver"`
		SQLitePath       string `yaml:"sqlite_path"`
		PostgresHost     string `yaml:"postgres_host"`
		PostgresPort     int    `yaml:"postgres_port"`
		PostgresUser     string `yaml:"postgres_user"`
		PostgresPassword string `yaml:"postgres_password"`
		PostgresDB       string `yaml:"postgres_db"`
		PostgresSSLMode  string `yaml:"postgres_sslmode"`
	} `yaml:"repository"`

	Cache struct {
		Type           string `yaml:"type"`
		LocalMaxSize   int    `yaml:"local_max_size"`
		LocalTTL       int    `yaml:"local_ttl"` // seconds
		RedisAddr      string `yaml:"redis_addr"`
		RedisPassword  string `yaml:"redis_password"`
		RedisDB        int    `yaml:"redis_db"`
		EnableTwoPhase bool   `yaml:"enable_two_phase"`
	} `yaml:"cache"`

	EventBus struct {
		Type              string `yaml:"type"`
		ChannelBufferSize int    `yaml:"channel_buffer_size"`
		NATSUrl           string `yaml:"nats_url"`
		NATSToken         string `yaml:"nats_token"`
		NATSMaxReconnects int    `yaml:"nats_max_reconnects"`
		NATSReconnectWait int    `yaml:"nats_reconnect_wait"`
	} `yaml:"event_bus"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled      bool   `yaml:"enabled"`
		ServiceName  string `yaml:"service_name"`
		ExporterType string `yaml:"exporter_type"`
		Endpoint     string `yaml:"endpoint"`
	} `yaml:"tracing"`
}

// Load reads configuration from a YAML file. A missing file is not an
// error: tier defaults plus environment overrides apply. A malformed
// file is an error.
func Load(path string) (*domain.Config, error) {
	var file fileConfig
	haveFile := false

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			haveFile = true
		case os.IsNotExist(err):
			// Fall through to defaults
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// Tier decides the component defaults: environment wins over file.
	tier := file.Tier
	if envTier := os.Getenv("HERON_TIER"); envTier != "" {
		tier = envTier
	}

	var cfg *domain.Config
	if domain.Tier(tier) == domain.TierPro || domain.Tier(tier) == domain.TierEnterprise {
		cfg = domain.ProConfig()
		cfg.Tier = domain.Tier(tier)
	} else {
		cfg = domain.DefaultConfig()
	}

	if haveFile {
		applyFile(cfg, &file)
	}
	applyEnv(cfg)

	return cfg, nil
}

// applyFile overlays non-zero file values on top of the tier defaults.
func applyFile(cfg *domain.Config, file *fileConfig) {
	if file.Server.Host != "" {
		cfg.Server.Host = file.Server.Host
	}
	if file.Server.Port != 0 {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 {
		cfg.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 {
		cfg.Server.WriteTimeout = file.Server.WriteTimeout
	}

	if file.Policy.Path != "" {
		cfg.Policy.Path = file.Policy.Path
	}

	if file.Repository.Driver != "" {
		cfg.Repository.Driver = file.Repository.Driver
	}
	if file.Repository.SQLitePath != "" {
		cfg.Repository.SQLitePath = file.Repository.SQLitePath
	}
	if file.Repository.PostgresHost != "" {
		cfg.Repository.PostgresHost = file.Repository.PostgresHost
	}
	if file.Repository.PostgresPort != 0 {
		cfg.Repository.PostgresPort = file.Repository.PostgresPort
	}
	if file.Repository.PostgresUser != "" {
		cfg.Repository.PostgresUser = file.Repository.PostgresUser
	}
	if file.Repository.PostgresPassword != "" {
		cfg.Repository.PostgresPassword = file.Repository.PostgresPassword
	}
	if file.Repository.PostgresDB != "" {
		cfg.Repository.PostgresDB = file.Repository.PostgresDB
	}
	if file.Repository.PostgresSSLMode != "" {
		cfg.Repository.PostgresSSLMode = file.Repository.PostgresSSLMode
	}

	if file.Cache.Type != "" {
		cfg.Cache.Type = file.Cache.Type
	}
	if file.Cache.LocalMaxSize != 0 {
		cfg.Cache.LocalMaxSize = file.Cache.LocalMaxSize
	}
	if file.Cache.LocalTTL != 0 {
		cfg.Cache.LocalTTL = time.Duration(file.Cache.LocalTTL) * time.Second
	}
	if file.Cache.RedisAddr != "" {
		cfg.Cache.RedisAddr = file.Cache.RedisAddr
	}
	if file.Cache.RedisPassword != "" {
		cfg.Cache.RedisPassword = file.Cache.RedisPassword
	}
	if file.Cache.RedisDB != 0 {
		cfg.Cache.RedisDB = file.Cache.RedisDB
	}
	if file.Cache.EnableTwoPhase {
		cfg.Cache.EnableTwoPhase = true
	}

	if file.EventBus.Type != "" {
		cfg.EventBus.Type = file.EventBus.Type
	}
	if file.EventBus.ChannelBufferSize != 0 {
		cfg.EventBus.ChannelBufferSize = file.EventBus.ChannelBufferSize
	}
	if file.EventBus.NATSUrl != "" {
		cfg.EventBus.NATSUrl = file.EventBus.NATSUrl
	}
	if file.EventBus.NATSToken != "" {
		cfg.EventBus.NATSToken = file.EventBus.NATSToken
	}
	if file.EventBus.NATSMaxReconnects != 0 {
		cfg.EventBus.NATSMaxReconnects = file.EventBus.NATSMaxReconnects
	}
	if file.EventBus.NATSReconnectWait != 0 {
		cfg.EventBus.NATSReconnectWait = file.EventBus.NATSReconnectWait
	}

	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		cfg.Logging.Format = file.Logging.Format
	}

	if file.Tracing.Enabled {
		cfg.Tracing.Enabled = true
	}
	if file.Tracing.ServiceName != "" {
		cfg.Tracing.ServiceName = file.Tracing.ServiceName
	}
	if file.Tracing.ExporterType != "" {
		cfg.Tracing.ExporterType = file.Tracing.ExporterType
	}
	if file.Tracing.Endpoint != "" {
		cfg.Tracing.Endpoint = file.Tracing.Endpoint
	}
}

// applyEnv overlays environment variables. Secrets and deployment
// addresses belong here, not in the config file.
func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("HERON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HERON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HERON_POLICY_PATH"); v != "" {
		cfg.Policy.Path = v
	}
	if v := os.Getenv("HERON_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HERON_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("HERON_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("HERON_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HERON_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("HERON_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HERON_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("HERON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if os.Getenv("HERON_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
}

// LogLevel converts the configured level string to a slog level.
// Unknown levels default to info.
func LogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
