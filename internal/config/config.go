package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Keycloak   KeycloakConfig
	Session    SessionConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Export     ExportConfig
	FileStore  FileStoreConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// BackendConfig points at the external monitoring API every route proxies to.
type BackendConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait  time.Duration `mapstructure:"retry_max_wait"`
	DownloadLimit int64         `mapstructure:"download_limit"`
}

// KeycloakConfig is optional; when URL is empty tokens are not introspected.
type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	HashKey    string        `mapstructure:"hash_key"`
	BlockKey   string        `mapstructure:"block_key"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Secure     bool          `mapstructure:"secure"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CacheConfig struct {
	Prefix         string        `mapstructure:"prefix"`
	LevelsTTL      time.Duration `mapstructure:"levels_ttl"`
	SummaryTTL     time.Duration `mapstructure:"summary_ttl"`
	PermissionsTTL time.Duration `mapstructure:"permissions_ttl"`
}

type ExportConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

type FileStoreConfig struct {
	BasePath         string        `mapstructure:"base_path"`
	MaxFileSize      int64         `mapstructure:"max_file_size"`
	AllowedMimeTypes []string      `mapstructure:"allowed_mime_types"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})

	// Backend defaults
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.retry_count", 2)
	v.SetDefault("backend.retry_wait", "500ms")
	v.SetDefault("backend.retry_max_wait", "3s")
	v.SetDefault("backend.download_limit", 200*1024*1024)

	// Session defaults
	v.SetDefault("session.cookie_name", "dashboard-session")
	v.SetDefault("session.max_age", "12h")
	v.SetDefault("session.secure", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.prefix", "dashboard:")
	v.SetDefault("cache.levels_ttl", "60s")
	v.SetDefault("cache.summary_ttl", "30s")
	v.SetDefault("cache.permissions_ttl", "30s")

	// Export defaults
	v.SetDefault("export.poll_interval", "5s")
	v.SetDefault("export.poll_timeout", "10s")

	// FileStore defaults
	v.SetDefault("filestore.base_path", "./data/exports")
	v.SetDefault("filestore.max_file_size", 200*1024*1024) // 200MB
	v.SetDefault("filestore.allowed_mime_types", []string{"text/csv", "application/octet-stream", "text/plain"})
	v.SetDefault("filestore.sweep_interval", "10m")
	v.SetDefault("filestore.max_age", "1h")

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("monitoring.metrics_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

func validateConfig(config *Config) error {
	if config.Backend.URL == "" {
		return fmt.Errorf("backend URL is required")
	}
	if config.Session.HashKey == "" {
		return fmt.Errorf("session hash key is required")
	}
	if l := len(config.Session.BlockKey); l != 0 && l != 16 && l != 24 && l != 32 {
		return fmt.Errorf("session block key must be 16, 24 or 32 bytes, got %d", l)
	}
	if config.Export.PollInterval <= 0 {
		return fmt.Errorf("export poll interval must be positive")
	}
	if config.Keycloak.URL != "" && config.Keycloak.Realm == "" {
		return fmt.Errorf("keycloak realm is required when keycloak URL is set")
	}
	return nil
}
