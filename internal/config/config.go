// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Sources SourcesConfig `mapstructure:"sources"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig locates the sqlite database file.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// HTTPConfig configures outbound fetch behavior shared by all adapters.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// SourceConfig configures one adapter instance.
type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	DelayMs int    `mapstructure:"delay_ms"`
}

// SourcesConfig configures the registered adapters.
type SourcesConfig struct {
	MangaDex SourceConfig `mapstructure:"mangadex"`
	WebScan  SourceConfig `mapstructure:"webscan"`
	// WebScanName is the source token the markup adapter registers under.
	WebScanName string `mapstructure:"webscan_name"`
}

// SyncConfig bounds sync runs.
type SyncConfig struct {
	Limit int `mapstructure:"limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path skips the file
// and uses defaults plus MANGATRACK_* env overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MANGATRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", defaultDBPath())
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("sources.mangadex.enabled", true)
	v.SetDefault("sources.mangadex.base_url", "https://api.mangadex.org")
	v.SetDefault("sources.mangadex.delay_ms", 250)
	v.SetDefault("sources.webscan.enabled", false)
	v.SetDefault("sources.webscan.base_url", "")
	v.SetDefault("sources.webscan.delay_ms", 500)
	v.SetDefault("sources.webscan_name", "webscan")
	v.SetDefault("sync.limit", 20)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Sources.WebScan.Enabled && c.Sources.WebScan.BaseURL == "" {
		return fmt.Errorf("sources.webscan.base_url must be set when webscan is enabled")
	}
	return nil
}

// Timeout returns the per-attempt fetch timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay converts a source's configured spacing to a duration.
func (s SourceConfig) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".mangatrack", "data.db")
}
