// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// PublicBaseURL is the externally reachable base of this service; the
	// provider webhook URL and signed download URLs are built from it.
	PublicBaseURL  string   `yaml:"public_base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name    string `yaml:"name"`
	Workers int    `yaml:"workers"`
}

type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	WebhookPath string        `yaml:"webhook_path"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	BasePath string        `yaml:"base_path"`
	URLTTL   time.Duration `yaml:"url_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LimitsConfig struct {
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	IntakePerMinute int   `yaml:"intake_per_minute"`
}

type CorrelationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type ReconcilerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	PendingMaxAge  time.Duration `yaml:"pending_max_age"`
	AwaitingMaxAge time.Duration `yaml:"awaiting_max_age"`
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Queue       QueueConfig       `yaml:"queue"`
	Provider    ProviderConfig    `yaml:"provider"`
	Storage     StorageConfig     `yaml:"storage"`
	Auth        AuthConfig        `yaml:"auth"`
	Limits      LimitsConfig      `yaml:"limits"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "imagine:dispatch"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Provider.WebhookPath == "" {
		cfg.Provider.WebhookPath = "/api/webhook"
	}
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Storage.URLTTL <= 0 {
		cfg.Storage.URLTTL = time.Hour
	}
	if cfg.Limits.MaxUploadBytes <= 0 {
		cfg.Limits.MaxUploadBytes = 10 << 20 // 10MB
	}
	if cfg.Limits.IntakePerMinute <= 0 {
		cfg.Limits.IntakePerMinute = 100
	}
	if cfg.Correlation.TTL <= 0 {
		cfg.Correlation.TTL = 24 * time.Hour
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.PendingMaxAge <= 0 {
		cfg.Reconciler.PendingMaxAge = time.Hour
	}
	if cfg.Reconciler.AwaitingMaxAge <= 0 {
		cfg.Reconciler.AwaitingMaxAge = 25 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Provider.BaseURL == "" {
		return nil, errors.New("provider.base_url is required")
	}
	if cfg.Server.PublicBaseURL == "" {
		return nil, errors.New("server.public_base_url is required")
	}
	if cfg.Storage.BasePath == "" {
		return nil, errors.New("storage.base_path is required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
