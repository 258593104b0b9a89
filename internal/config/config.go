// Package config loads and validates scorer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// scheduleParser accepts five-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Storage        StorageConfig        `mapstructure:"storage"`
	CrawlerService CrawlerServiceConfig `mapstructure:"crawler_service"`
	Ingest         IngestConfig         `mapstructure:"ingest"`
	Enrichment     EnrichmentConfig     `mapstructure:"enrichment"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Competitor     CompetitorConfig     `mapstructure:"competitor"`
	PubSub         PubSubConfig         `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DatabaseConfig selects Postgres. An empty DSN keeps everything in memory.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	Migrate                bool   `mapstructure:"migrate"`
}

// StorageConfig chooses where raw page content is kept.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem blob store.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// CrawlerServiceConfig points at the external crawler.
type CrawlerServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	CallbackURL    string `mapstructure:"callback_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// IngestConfig tunes batch ingestion.
type IngestConfig struct {
	MinWordCount          int `mapstructure:"min_word_count"`
	EnqueueTimeoutSeconds int `mapstructure:"enqueue_timeout_seconds"`
}

// EnrichmentConfig controls asynchronous LLM content scoring.
type EnrichmentConfig struct {
	Enabled     bool      `mapstructure:"enabled"`
	Queue       string    `mapstructure:"queue"`
	QueueDepth  int       `mapstructure:"queue_depth"`
	Workers     int       `mapstructure:"workers"`
	MaxAttempts int       `mapstructure:"max_attempts"`
	MaxChars    int       `mapstructure:"max_chars"`
	LLM         LLMConfig `mapstructure:"llm"`
}

// LLMConfig configures the Anthropic content scorer.
type LLMConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RedisConfig locates the enrichment task list.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	ListKey  string `mapstructure:"list_key"`
}

// CompetitorConfig drives the benchmark sweep.
type CompetitorConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Schedule          string  `mapstructure:"schedule"`
	BatchSize         int     `mapstructure:"batch_size"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// PubSubConfig holds metadata for competitor notifications. An empty
// project keeps notifications in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AIREADY")
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
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("database.migrate", true)
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.local.base_dir", "")
	v.SetDefault("crawler_service.base_url", "")
	v.SetDefault("crawler_service.api_key", "")
	v.SetDefault("crawler_service.callback_url", "")
	v.SetDefault("crawler_service.timeout_seconds", 10)
	v.SetDefault("ingest.min_word_count", 300)
	v.SetDefault("ingest.enqueue_timeout_seconds", 2)
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.queue", QueueMemory)
	v.SetDefault("enrichment.queue_depth", 256)
	v.SetDefault("enrichment.workers", 2)
	v.SetDefault("enrichment.max_attempts", 3)
	v.SetDefault("enrichment.max_chars", 12000)
	v.SetDefault("enrichment.llm.api_key", "")
	v.SetDefault("enrichment.llm.model", "claude-3-5-haiku-latest")
	v.SetDefault("enrichment.llm.max_tokens", 512)
	v.SetDefault("enrichment.llm.requests_per_second", 2)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.list_key", "airs:enrichment:tasks")
	v.SetDefault("competitor.enabled", false)
	v.SetDefault("competitor.schedule", "0 * * * *")
	v.SetDefault("competitor.batch_size", 20)
	v.SetDefault("competitor.user_agent", "ai-readiness-scorer/0.1")
	v.SetDefault("competitor.timeout_seconds", 15)
	v.SetDefault("competitor.requests_per_second", 1)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "competitor-events")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, local, gcs", c.Storage.Backend)
	}
	if c.Database.MinConns < 0 || (c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns) {
		return fmt.Errorf("database.min_conns must be between 0 and database.max_conns")
	}
	if c.Ingest.MinWordCount < 0 {
		return fmt.Errorf("ingest.min_word_count must be >= 0")
	}
	if c.Enrichment.Enabled {
		if c.Enrichment.Workers <= 0 {
			return fmt.Errorf("enrichment.workers must be > 0 when enrichment is enabled")
		}
		if c.Enrichment.LLM.APIKey == "" {
			return fmt.Errorf("enrichment.llm.api_key must be set when enrichment is enabled")
		}
		switch c.Enrichment.Queue {
		case QueueMemory:
			if c.Enrichment.QueueDepth <= 0 {
				return fmt.Errorf("enrichment.queue_depth must be > 0")
			}
		case QueueRedis:
			if c.Redis.Address == "" {
				return fmt.Errorf("redis.address must be set for the redis queue")
			}
		default:
			return fmt.Errorf("enrichment.queue %q is not one of memory, redis", c.Enrichment.Queue)
		}
	}
	if c.Competitor.Enabled {
		if c.Competitor.BatchSize <= 0 {
			return fmt.Errorf("competitor.batch_size must be > 0")
		}
		if _, err := scheduleParser.Parse(c.Competitor.Schedule); err != nil {
			return fmt.Errorf("competitor.schedule: %w", err)
		}
	}
	return nil
}

// ShutdownTimeout is the grace period for in-flight requests.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CrawlerTimeout bounds a single dispatch request.
func (c Config) CrawlerTimeout() time.Duration {
	return time.Duration(c.CrawlerService.TimeoutSeconds) * time.Second
}

// CompetitorTimeout bounds a single benchmark fetch.
func (c Config) CompetitorTimeout() time.Duration {
	return time.Duration(c.Competitor.TimeoutSeconds) * time.Second
}

// ConnLifetime is the Postgres pool's max connection lifetime.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.Database.MaxConnLifetimeMinutes) * time.Minute
}
