package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"approvalhub/internal/chatops"
)

const (
	DefaultPort        = "5000"
	DefaultPostgresDSN = "postgresql://localhost/approval_hub?sslmode=disable"
	DefaultDimension   = 1024
	DefaultThreshold   = 0.7
	DefaultSearchLimit = 10
)

type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Slack     SlackConfig     `json:"slack" yaml:"slack"`
	Inference InferenceConfig `json:"inference" yaml:"inference"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Refresh   RefreshConfig   `json:"refresh" yaml:"refresh"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr            string  `json:"http_addr" yaml:"http_addr" env:"HTTP_ADDR"`
	Port                string  `json:"port" yaml:"port" env:"PORT"`
	IngestToken         string  `json:"ingest_token" yaml:"ingest_token" env:"INGEST_TOKEN"`
	RateLimitRPS        float64 `json:"rate_limit_rps" yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst      int     `json:"rate_limit_burst" yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	ShutdownTimeoutSecs int     `json:"shutdown_timeout_secs" yaml:"shutdown_timeout_secs" env:"SHUTDOWN_TIMEOUT_SECS"`
}

// Addr returns the listen address: http_addr if set, otherwise ":" + port.
func (s ServerConfig) Addr() string {
	if addr := strings.TrimSpace(s.HTTPAddr); addr != "" {
		return addr
	}
	return ":" + strings.TrimSpace(s.Port)
}

type StorageConfig struct {
	PostgresDSN     string `json:"postgres_dsn" yaml:"postgres_dsn" env:"DATABASE_URL"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifeSecs int    `json:"conn_max_life_secs" yaml:"conn_max_life_secs" env:"DB_CONN_MAX_LIFE_SECS"`
	AutoMigrate     bool   `json:"auto_migrate" yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

type SlackConfig struct {
	BotToken      string `json:"bot_token" yaml:"bot_token" env:"SLACK_BOT_TOKEN"`
	SigningSecret string `json:"signing_secret" yaml:"signing_secret" env:"SLACK_SIGNING_SECRET"`
	AppID         string `json:"app_id" yaml:"app_id" env:"SLACK_APP_ID"`
	APIURL        string `json:"api_url" yaml:"api_url" env:"SLACK_API_URL"`
}

type InferenceConfig struct {
	APIBase        string   `json:"api_base" yaml:"api_base" env:"INFERENCE_API_URL"`
	APIKey         string   `json:"api_key" yaml:"api_key" env:"INFERENCE_API_KEY"`
	EmbeddingModel string   `json:"embedding_model" yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	ChatModel      string   `json:"chat_model" yaml:"chat_model" env:"CHAT_MODEL"`
	Temperature    *float64 `json:"temperature" yaml:"temperature" env:"CHAT_TEMPERATURE"`
	Dimension      int      `json:"dimension" yaml:"dimension" env:"EMBEDDING_DIMENSION"`
	TimeoutSecs    int      `json:"timeout_secs" yaml:"timeout_secs" env:"INFERENCE_TIMEOUT_SECS"`
	RedactPatterns []string `json:"redact_patterns" yaml:"redact_patterns" env:"REDACT_PATTERNS" envSeparator:","`
}

// Enabled reports whether an inference provider is configured.
func (c InferenceConfig) Enabled() bool {
	return strings.TrimSpace(c.APIBase) != "" && strings.TrimSpace(c.APIKey) != ""
}

type SearchConfig struct {
	Threshold float64 `json:"threshold" yaml:"threshold" env:"SEARCH_THRESHOLD"`
	Limit     int     `json:"limit" yaml:"limit" env:"SEARCH_LIMIT"`
}

type CacheConfig struct {
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" env:"REDIS_DB"`
	TTLSecs       int    `json:"ttl_secs" yaml:"ttl_secs" env:"EMBEDDING_CACHE_TTL_SECS"`
}

type RefreshConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled" env:"REFRESH_ENABLED"`
	Cron             string `json:"cron" yaml:"cron" env:"REFRESH_CRON"`
	PollIntervalSecs int    `json:"poll_interval_secs" yaml:"poll_interval_secs" env:"REFRESH_POLL_INTERVAL_SECS"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" env:"LOG_LEVEL"`
}

var parseEnv = env.Parse

// LoadConfig reads path (JSON, or YAML for .yaml/.yml), applies defaults and
// environment overrides, then validates. An empty path loads from the
// environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := parseEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Server.HTTPAddr) == "" && strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeoutSecs <= 0 {
		c.Server.ShutdownTimeoutSecs = 30
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = int(c.Server.RateLimitRPS*2) + 1
	}
	if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
		c.Storage.PostgresDSN = DefaultPostgresDSN
	}
	if strings.TrimSpace(c.Slack.APIURL) == "" {
		c.Slack.APIURL = chatops.DefaultSlackAPIURL
	}
	if c.Inference.Dimension <= 0 {
		c.Inference.Dimension = DefaultDimension
	}
	if c.Inference.TimeoutSecs <= 0 {
		c.Inference.TimeoutSecs = 30
	}
	if c.Search.Threshold <= 0 {
		c.Search.Threshold = DefaultThreshold
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = DefaultSearchLimit
	}
	if c.Cache.TTLSecs <= 0 {
		c.Cache.TTLSecs = 24 * 60 * 60
	}
	if strings.TrimSpace(c.Refresh.Cron) == "" {
		c.Refresh.Cron = chatops.DefaultRefreshCron
	}
	if c.Refresh.PollIntervalSecs <= 0 {
		c.Refresh.PollIntervalSecs = 30
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
		return errors.New("storage.postgres_dsn required")
	}
	if strings.TrimSpace(c.Server.HTTPAddr) == "" && strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.http_addr or server.port required")
	}
	if c.Server.RateLimitRPS < 0 {
		return errors.New("server.rate_limit_rps must be >= 0")
	}
	if t := c.Inference.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.New("inference.temperature must be between 0 and 2")
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return errors.New("search.threshold must be between 0 and 1")
	}
	if c.Search.Limit < 0 {
		return errors.New("search.limit must be >= 0")
	}
	// search_vector is declared vector(1024) in migrations/00001_approval_requests.sql.
	if c.Inference.Dimension != 0 && c.Inference.Dimension != DefaultDimension {
		return fmt.Errorf("inference.dimension must be %d to match the search_vector column (migrations/00001_approval_requests.sql), got %d",
			DefaultDimension, c.Inference.Dimension)
	}
	if strings.TrimSpace(c.Inference.APIKey) != "" && strings.TrimSpace(c.Inference.APIBase) == "" {
		return errors.New("inference.api_base required when inference.api_key is set")
	}
	if strings.TrimSpace(c.Slack.BotToken) != "" && strings.TrimSpace(c.Slack.SigningSecret) == "" {
		return errors.New("slack.signing_secret required when slack.bot_token is set")
	}
	if c.Refresh.Enabled {
		if strings.TrimSpace(c.Slack.BotToken) == "" {
			return errors.New("slack.bot_token required when refresh.enabled is true")
		}
		if _, err := chatops.ParseCron(c.Refresh.Cron); err != nil {
			return fmt.Errorf("refresh.cron invalid: %w", err)
		}
	}
	return nil
}
