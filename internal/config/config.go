// Package config loads the sync core configuration from a YAML file with
// DONEDEX_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// DataDir holds the SQLite store, media files and credentials.
	DataDir string `yaml:"data_dir"`

	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Remote RemoteConfig `yaml:"remote"`
	Blob   BlobConfig   `yaml:"blob"`
	Sync   SyncConfig   `yaml:"sync"`
	Media  MediaConfig  `yaml:"media"`
}

// LogConfig controls structured log output and rotation.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty logs to stdout

	// Rotation settings, used only when File is set.
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// ServerConfig controls the desktop companion HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RemoteConfig points at the inspection record API.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"` // empty reads from the credential store
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BlobConfig points at the S3-compatible photo blob store.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"` // empty reads from the credential store
	UseSSL    bool   `yaml:"use_ssl"`
}

// SyncConfig tunes the sync engine and network monitor.
type SyncConfig struct {
	ItemTimeoutSeconds   int    `yaml:"item_timeout_seconds"`
	PeriodicMinutes      int    `yaml:"periodic_minutes"` // 0 disables periodic drains
	ProbeURL             string `yaml:"probe_url"`
	ProbeIntervalSeconds int    `yaml:"probe_interval_seconds"`
}

// MediaConfig tunes photo compression before upload.
type MediaConfig struct {
	MaxDimension int `yaml:"max_dimension"`
	JPEGQuality  int `yaml:"jpeg_quality"`
}

// Load reads the YAML config at path, fills defaults and applies DONEDEX_*
// environment overrides. A missing file yields the defaults; a malformed
// file is an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns the configuration used when no file or overrides exist.
func defaults() *Config {
	return &Config{
		DataDir: "data",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
		},
		Blob: BlobConfig{
			Region: "us-east-1",
			UseSSL: true,
		},
		Sync: SyncConfig{
			ItemTimeoutSeconds:   30,
			ProbeIntervalSeconds: 15,
		},
		Media: MediaConfig{
			MaxDimension: 1920,
			JPEGQuality:  80,
		},
	}
}

// applyEnv overrides config fields from DONEDEX_* environment variables.
func applyEnv(cfg *Config) {
	cfg.DataDir = envOrDefault("DONEDEX_DATA_DIR", cfg.DataDir)
	cfg.Log.Level = envOrDefault("DONEDEX_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envOrDefault("DONEDEX_LOG_FILE", cfg.Log.File)
	cfg.Server.Host = envOrDefault("DONEDEX_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOrDefault("DONEDEX_SERVER_PORT", cfg.Server.Port)
	cfg.Remote.BaseURL = envOrDefault("DONEDEX_REMOTE_URL", cfg.Remote.BaseURL)
	cfg.Remote.Token = envOrDefault("DONEDEX_REMOTE_TOKEN", cfg.Remote.Token)
	cfg.Blob.Endpoint = envOrDefault("DONEDEX_BLOB_ENDPOINT", cfg.Blob.Endpoint)
	cfg.Blob.Bucket = envOrDefault("DONEDEX_BLOB_BUCKET", cfg.Blob.Bucket)
	cfg.Blob.AccessKey = envOrDefault("DONEDEX_BLOB_ACCESS_KEY", cfg.Blob.AccessKey)
	cfg.Blob.SecretKey = envOrDefault("DONEDEX_BLOB_SECRET_KEY", cfg.Blob.SecretKey)
	cfg.Sync.ProbeURL = envOrDefault("DONEDEX_PROBE_URL", cfg.Sync.ProbeURL)
}

// validate rejects configurations the rest of the system cannot run with.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.Sync.ItemTimeoutSeconds <= 0 {
		return fmt.Errorf("config: item_timeout_seconds must be positive")
	}
	return nil
}

// Addr returns the host:port the desktop server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ItemTimeout returns the per-item dispatch timeout.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Sync.ItemTimeoutSeconds) * time.Second
}

// PeriodicInterval returns the periodic drain interval, or zero when disabled.
func (c *Config) PeriodicInterval() time.Duration {
	return time.Duration(c.Sync.PeriodicMinutes) * time.Minute
}

// ProbeInterval returns how often the network monitor probes reachability.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Sync.ProbeIntervalSeconds) * time.Second
}

// RemoteTimeout returns the HTTP client timeout for remote record calls.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return fallback
}
