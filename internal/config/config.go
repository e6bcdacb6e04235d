// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Source    SourceConfig    `mapstructure:"source"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int    `mapstructure:"max_conns"`
	MinConns           int    `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SourceConfig identifies the scraped site. BaseURL may carry a localized
// path prefix (e.g. https://example.com/en); the URL helpers append to it.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// ScanConfig governs the sequential-ID discovery loop.
type ScanConfig struct {
	SeedID          int64 `mapstructure:"seed_id"`
	MissThreshold   int   `mapstructure:"miss_threshold"`
	BoundedSpan     int64 `mapstructure:"bounded_span"`
	DelayMinSeconds int   `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds int   `mapstructure:"delay_max_seconds"`
	MaxRetries      int   `mapstructure:"max_retries"`
}

// EnrichConfig paces the company contact backfill batch.
type EnrichConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	DelaySeconds      int  `mapstructure:"delay_seconds"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int  `mapstructure:"max_parallel"`
}

// ArchiveConfig selects the raw-page snapshot backend.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
	Prefix  string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for new-vacancy announcements.
type PublisherConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig tunes the scan-run event hub.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds hub batching.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// ScheduleConfig drives the periodic unbounded scan.
type ScheduleConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	EveryMinutes int  `mapstructure:"every_minutes"`
}

// Load builds a Config from disk/environment. With an empty path it looks
// for config.{yaml,json,toml} in the working directory and ./configs; a
// missing file is fine, env vars and defaults still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
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
	// String keys default to empty so AutomaticEnv can see them; Viper only
	// consults the environment for keys it already knows about.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.user_agent", "vacancy-crawler/0.1")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.respect_robots", false)
	v.SetDefault("scan.seed_id", 313620)
	v.SetDefault("scan.miss_threshold", 5)
	v.SetDefault("scan.bounded_span", 100)
	v.SetDefault("scan.delay_min_seconds", 3)
	v.SetDefault("scan.delay_max_seconds", 6)
	v.SetDefault("scan.max_retries", 3)
	v.SetDefault("enrich.enabled", false)
	v.SetDefault("enrich.delay_seconds", 2)
	v.SetDefault("enrich.nav_timeout_seconds", 25)
	v.SetDefault("enrich.max_parallel", 1)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 200)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.every_minutes", 25)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if _, err := url.Parse(c.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url is not a valid URL: %w", err)
	}
	if c.Source.UserAgent == "" {
		return fmt.Errorf("source.user_agent must be set")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Scan.SeedID <= 0 {
		return fmt.Errorf("scan.seed_id must be > 0")
	}
	if c.Scan.MissThreshold <= 0 {
		return fmt.Errorf("scan.miss_threshold must be > 0")
	}
	if c.Scan.BoundedSpan <= 0 {
		return fmt.Errorf("scan.bounded_span must be > 0")
	}
	if c.Scan.DelayMinSeconds <= 0 || c.Scan.DelayMaxSeconds < c.Scan.DelayMinSeconds {
		return fmt.Errorf("scan.delay_min_seconds/delay_max_seconds must satisfy 0 < min <= max")
	}
	if c.Scan.MaxRetries < 0 {
		return fmt.Errorf("scan.max_retries must be >= 0")
	}
	if c.Enrich.Enabled && c.Enrich.MaxParallel <= 0 {
		return fmt.Errorf("enrich.max_parallel must be > 0 when enrichment is enabled")
	}
	switch c.Archive.Backend {
	case "", "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, memory, local, gcs")
	}
	if c.Schedule.Enabled && c.Schedule.EveryMinutes <= 0 {
		return fmt.Errorf("schedule.every_minutes must be > 0 when the schedule is enabled")
	}
	return nil
}

// VacancyURL returns the posting URL for an ID.
func (s SourceConfig) VacancyURL(id int64) string {
	return fmt.Sprintf("%s/vacancy/%d", strings.TrimRight(s.BaseURL, "/"), id)
}

// SearchURL returns the site search URL for a free-text query.
func (s SourceConfig) SearchURL(query string) string {
	return fmt.Sprintf("%s/search?query=%s", strings.TrimRight(s.BaseURL, "/"), url.QueryEscape(query))
}

// Timeout converts the transport timeout to a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DelayRange returns the inter-request delay bounds.
func (c ScanConfig) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.DelayMinSeconds) * time.Second,
		time.Duration(c.DelayMaxSeconds) * time.Second
}

// MaxConnLifetime converts the pool lifetime to a duration.
func (d DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(d.MaxConnLifetimeMin) * time.Minute
}
