// Package config loads pipeline configuration from YAML with environment
// overrides. Every field has a working default; a missing file is not an
// error, a malformed one is.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Pipeline Pipeline      `yaml:"pipeline"`
	Sources  SourcesConfig `yaml:"sources"`
	Channels Channels      `yaml:"channels"`
	Metrics  Metrics       `yaml:"metrics"`
}

// Pipeline tunes the core processing stages.
type Pipeline struct {
	MaxConcurrentScans int           `yaml:"max_concurrent_scans"`
	WorkerConcurrency  int           `yaml:"worker_concurrency"`
	MaxAttempts        int           `yaml:"max_attempts"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	SmoothingDelay     time.Duration `yaml:"smoothing_delay"`
	DedupWindow        time.Duration `yaml:"dedup_window"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	RecordRetention    time.Duration `yaml:"record_retention"`
	SourceRateLimit    float64       `yaml:"source_rate_limit"` // notifications per second per source
	SourceRateBurst    int           `yaml:"source_rate_burst"`
	EventBuffer        int           `yaml:"event_buffer"`
	RecordDBPath       string        `yaml:"record_db_path"` // empty keeps records in memory
}

// SourcesConfig enables and addresses the built-in connectors.
type SourcesConfig struct {
	Markets  SourceConfig `yaml:"markets"`
	Forum    SourceConfig `yaml:"forum"`
	Codehost SourceConfig `yaml:"codehost"`
	Darkweb  SourceConfig `yaml:"darkweb"`
}

// SourceConfig is the shared shape of one connector entry.
type SourceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Schedule string        `yaml:"schedule"` // cron expression
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"api_key"`
	Keywords []string      `yaml:"keywords"` // relevance prefilter, darkweb only
}

// Channels configures the delivery endpoints. A channel with empty
// credentials is treated as not configured, never as an error.
type Channels struct {
	Telegram TelegramChannel `yaml:"telegram"`
	Slack    SlackChannel    `yaml:"slack"`
	Webhook  WebhookChannel  `yaml:"webhook"`
	Email    EmailChannel    `yaml:"email"`
}

type TelegramChannel struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type SlackChannel struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

type WebhookChannel struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type EmailChannel struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads the file at path (if non-empty and present), applies environment
// overrides, fills defaults, and validates. A missing file falls back to
// defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults + env only
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration. All connectors are disabled;
// enabling one requires a URL.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			MaxConcurrentScans: 10,
			WorkerConcurrency:  5,
			MaxAttempts:        3,
			BackoffBase:        2 * time.Second,
			SmoothingDelay:     5 * time.Second,
			DedupWindow:        24 * time.Hour,
			SweepInterval:      time.Hour,
			RecordRetention:    7 * 24 * time.Hour,
			SourceRateLimit:    1,
			SourceRateBurst:    5,
			EventBuffer:        64,
		},
		Sources: SourcesConfig{
			Markets:  SourceConfig{Schedule: "@every 1m", Timeout: 15 * time.Second},
			Forum:    SourceConfig{Schedule: "@every 5m", Timeout: 20 * time.Second},
			Codehost: SourceConfig{Schedule: "@every 10m", Timeout: 15 * time.Second},
			Darkweb:  SourceConfig{Schedule: "@every 30m", Timeout: 30 * time.Second},
		},
		Channels: Channels{
			Webhook: WebhookChannel{Timeout: 10 * time.Second},
		},
		Metrics: Metrics{ListenAddr: ":9102"},
	}
}

func (c *Config) applyEnvOverrides() {
	envOverride(&c.Channels.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	envOverrideInt64(&c.Channels.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	envOverride(&c.Channels.Slack.Token, "SLACK_TOKEN")
	envOverride(&c.Channels.Slack.Channel, "SLACK_CHANNEL")
	envOverride(&c.Channels.Webhook.URL, "WEBHOOK_URL")
	envOverride(&c.Channels.Email.Password, "SMTP_PASSWORD")
	envOverride(&c.Sources.Markets.APIKey, "MARKETS_API_KEY")
	envOverride(&c.Sources.Codehost.APIKey, "CODEHOST_API_KEY")
	envOverride(&c.Pipeline.RecordDBPath, "RECORD_DB_PATH")
	envOverride(&c.Metrics.ListenAddr, "METRICS_LISTEN_ADDR")
}

// fillDefaults repairs zero values left by a partial YAML document so a
// sparse file only needs to state what it changes.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Pipeline.MaxConcurrentScans == 0 {
		c.Pipeline.MaxConcurrentScans = def.Pipeline.MaxConcurrentScans
	}
	if c.Pipeline.WorkerConcurrency == 0 {
		c.Pipeline.WorkerConcurrency = def.Pipeline.WorkerConcurrency
	}
	if c.Pipeline.MaxAttempts == 0 {
		c.Pipeline.MaxAttempts = def.Pipeline.MaxAttempts
	}
	if c.Pipeline.BackoffBase == 0 {
		c.Pipeline.BackoffBase = def.Pipeline.BackoffBase
	}
	if c.Pipeline.SmoothingDelay == 0 {
		c.Pipeline.SmoothingDelay = def.Pipeline.SmoothingDelay
	}
	if c.Pipeline.DedupWindow == 0 {
		c.Pipeline.DedupWindow = def.Pipeline.DedupWindow
	}
	if c.Pipeline.SweepInterval == 0 {
		c.Pipeline.SweepInterval = def.Pipeline.SweepInterval
	}
	if c.Pipeline.RecordRetention == 0 {
		c.Pipeline.RecordRetention = def.Pipeline.RecordRetention
	}
	if c.Pipeline.SourceRateLimit == 0 {
		c.Pipeline.SourceRateLimit = def.Pipeline.SourceRateLimit
	}
	if c.Pipeline.SourceRateBurst == 0 {
		c.Pipeline.SourceRateBurst = def.Pipeline.SourceRateBurst
	}
	if c.Pipeline.EventBuffer == 0 {
		c.Pipeline.EventBuffer = def.Pipeline.EventBuffer
	}
	fillSource(&c.Sources.Markets, def.Sources.Markets)
	fillSource(&c.Sources.Forum, def.Sources.Forum)
	fillSource(&c.Sources.Codehost, def.Sources.Codehost)
	fillSource(&c.Sources.Darkweb, def.Sources.Darkweb)
	if c.Channels.Webhook.Timeout == 0 {
		c.Channels.Webhook.Timeout = def.Channels.Webhook.Timeout
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = def.Metrics.ListenAddr
	}
}

func fillSource(s *SourceConfig, def SourceConfig) {
	if s.Schedule == "" {
		s.Schedule = def.Schedule
	}
	if s.Timeout == 0 {
		s.Timeout = def.Timeout
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Pipeline.MaxConcurrentScans < 1 {
		return fmt.Errorf("pipeline.max_concurrent_scans must be >= 1, got %d", c.Pipeline.MaxConcurrentScans)
	}
	if c.Pipeline.WorkerConcurrency < 1 {
		return fmt.Errorf("pipeline.worker_concurrency must be >= 1, got %d", c.Pipeline.WorkerConcurrency)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be >= 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.BackoffBase < 0 || c.Pipeline.SmoothingDelay < 0 {
		return fmt.Errorf("pipeline backoff_base and smoothing_delay must not be negative")
	}
	for name, src := range map[string]SourceConfig{
		"markets":  c.Sources.Markets,
		"forum":    c.Sources.Forum,
		"codehost": c.Sources.Codehost,
		"darkweb":  c.Sources.Darkweb,
	} {
		if src.Enabled && src.URL == "" {
			return fmt.Errorf("sources.%s is enabled but has no url", name)
		}
	}
	return nil
}

func envOverride(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func envOverrideInt64(field *int64, key string) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			*field = parsed
		}
	}
}
