package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the reader configuration loaded from environment variables
// and the optional configs/.env file.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	StorageType       string `mapstructure:"storage_type"`
	BBoltPath         string `mapstructure:"bbolt_path"`
	StorageQuotaBytes int64  `mapstructure:"storage_quota_bytes"`

	RelaysFile         string `mapstructure:"relays_file"`
	HTTPTimeoutSeconds int64  `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	RefreshIntervalSeconds int64         `mapstructure:"refresh_interval"`
	RefreshInterval        time.Duration `mapstructure:"-"`

	TodayArticleCap     int `mapstructure:"today_article_cap"`
	PastArticleCap      int `mapstructure:"past_article_cap"`
	RetentionDays       int `mapstructure:"retention_days"`
	TimezoneOffsetHours int `mapstructure:"timezone_offset_hours"`

	EnrichMetadata  bool   `mapstructure:"enrich_metadata"`
	OPMLExportTitle string `mapstructure:"opml_export_title"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "yomu-reader")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/reader.db")
	v.SetDefault("storage_quota_bytes", int64(5*1024*1024)) // 5 MiB
	v.SetDefault("relays_file", "./configs/relays.yaml")
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("refresh_interval", 900) // seconds
	v.SetDefault("today_article_cap", 500)
	v.SetDefault("past_article_cap", 500)
	v.SetDefault("retention_days", 30)
	v.SetDefault("timezone_offset_hours", 9) // JST
	v.SetDefault("enrich_metadata", false)
	v.SetDefault("opml_export_title", "RSS Reader Export")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StorageQuotaBytes <= 0 {
		return nil, fmt.Errorf("invalid storage_quota_bytes (must be positive)")
	}
	if cfg.RefreshIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid refresh_interval (must be positive seconds)")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	if cfg.TodayArticleCap <= 0 || cfg.PastArticleCap <= 0 {
		return nil, fmt.Errorf("invalid article caps (must be positive)")
	}
	if cfg.RetentionDays <= 0 {
		return nil, fmt.Errorf("invalid retention_days (must be positive)")
	}
	cfg.RefreshInterval = time.Duration(cfg.RefreshIntervalSeconds) * time.Second
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	return &cfg, nil
}
