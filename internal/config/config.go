// Package config loads and validates frontier configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	RL      RLConfig      `mapstructure:"rl"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// APIConfig toggles the status API surface.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the crawl loop and fetch pool.
type CrawlerConfig struct {
	Seeds              []string `mapstructure:"seeds"`
	BlockedDomains     []string `mapstructure:"blocked_domains"`
	Concurrency        int      `mapstructure:"concurrency"`
	UserAgent          string   `mapstructure:"user_agent"`
	IgnoreRobots       bool     `mapstructure:"ignore_robots"`
	MaxDepth           int      `mapstructure:"max_depth"`
	MaxPages           int      `mapstructure:"max_pages"`
	DomainQPS          float64  `mapstructure:"domain_qps"`
	DomainBurst        int      `mapstructure:"domain_burst"`
	StatsInterval      int      `mapstructure:"stats_interval"`
	CheckpointInterval int      `mapstructure:"checkpoint_interval"`
}

// RLConfig tunes the value estimator and scheduler exploration.
type RLConfig struct {
	Epsilon        float64 `mapstructure:"epsilon"`
	Gamma          float64 `mapstructure:"gamma"`
	LearnRate      float64 `mapstructure:"learn_rate"`
	ActionDims     int     `mapstructure:"action_dims"`
	UpdateInterval int     `mapstructure:"update_interval"`
	ResweepReward  float64 `mapstructure:"resweep_reward"`
}

// FetcherConfig configures the HTTP fetcher and the optional headless one.
type FetcherConfig struct {
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	Headless       HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects the blob backend for checkpoints.
type StorageConfig struct {
	Provider string             `mapstructure:"provider"`
	Bucket   string             `mapstructure:"bucket"`
	Local    LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig sets the filesystem blob store root.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DBConfig controls the optional Postgres page archive.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// PublishConfig selects the page-crawled notification channel.
type PublishConfig struct {
	Provider  string `mapstructure:"provider"`
	Topic     string `mapstructure:"topic"`
	ProjectID string `mapstructure:"project_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QFRONTIER")
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
	v.SetDefault("api.enabled", true)
	v.SetDefault("crawler.blocked_domains", []string{})
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.user_agent", "qfrontier-bot/0.1")
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.domain_qps", 1.0)
	v.SetDefault("crawler.domain_burst", 1)
	v.SetDefault("crawler.stats_interval", 10)
	v.SetDefault("crawler.checkpoint_interval", 600)
	v.SetDefault("rl.epsilon", 0.0)
	v.SetDefault("rl.gamma", 0.5)
	v.SetDefault("rl.learn_rate", 0.1)
	v.SetDefault("rl.action_dims", 1024)
	v.SetDefault("rl.update_interval", 0)
	v.SetDefault("rl.resweep_reward", 0.1)
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.headless.enabled", false)
	v.SetDefault("fetcher.headless.max_parallel", 1)
	v.SetDefault("fetcher.headless.nav_timeout_seconds", 45)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_dir", "./data")
	v.SetDefault("db.table", "pages")
	v.SetDefault("publish.provider", "noop")
	v.SetDefault("publish.topic", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.DomainQPS <= 0 {
		return fmt.Errorf("crawler.domain_qps must be > 0")
	}
	if c.RL.Epsilon < 0 || c.RL.Epsilon > 1 {
		return fmt.Errorf("rl.epsilon must be in [0, 1]")
	}
	if c.RL.Gamma < 0 || c.RL.Gamma > 1 {
		return fmt.Errorf("rl.gamma must be in [0, 1]")
	}
	if c.RL.LearnRate <= 0 {
		return fmt.Errorf("rl.learn_rate must be > 0")
	}
	if c.RL.UpdateInterval < 0 {
		return fmt.Errorf("rl.update_interval must be >= 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Fetcher.Headless.Enabled && c.Fetcher.Headless.MaxParallel <= 0 {
		return fmt.Errorf("fetcher.headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case "none", "memory", "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider must be one of none, memory, local, gcs")
	}
	switch c.Publish.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publish.ProjectID == "" || c.Publish.Topic == "" {
			return fmt.Errorf("publish.project_id and publish.topic must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("publish.provider must be one of noop, memory, pubsub")
	}
	return nil
}

// FetchTimeout converts the fetcher timeout into a duration.
func (c FetcherConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// StatsEvery converts the stats interval into a duration.
func (c CrawlerConfig) StatsEvery() time.Duration {
	return time.Duration(c.StatsInterval) * time.Second
}

// CheckpointEvery converts the checkpoint interval into a duration.
func (c CrawlerConfig) CheckpointEvery() time.Duration {
	return time.Duration(c.CheckpointInterval) * time.Second
}

// ConnLifetime converts the pool lifetime into a duration.
func (c DBConfig) ConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeSeconds) * time.Second
}
