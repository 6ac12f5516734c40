package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketBrief/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Trigger     TriggerConfig    `yaml:"trigger"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Price       PriceConfig      `yaml:"price"`
	Feeds       FeedsConfig      `yaml:"feeds"`
	Model       ModelConfig      `yaml:"model"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Report      ReportConfig     `yaml:"report"`
	Cache       CacheConfig      `yaml:"cache"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"3m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level   string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format  string        `yaml:"format" default:"json" validate:"oneof=json console"`
	Output  string        `yaml:"output" default:"stdout"`
	Collect CollectConfig `yaml:"collect"`
}

// CollectConfig ships aggregated error logs to Kafka.
type CollectConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Topic          string        `yaml:"topic" default:"marketbrief.logs"`
	FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
	CountThreshold int           `yaml:"count_threshold" default:"100"`
}

type TriggerConfig struct {
	Secret    string          `yaml:"secret"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

type RateLimitConfig struct {
	Enabled      bool    `yaml:"enabled" default:"true"`
	Capacity     float64 `yaml:"capacity" default:"3" validate:"gt=0"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"0.05" validate:"gt=0"`
}

type ScheduleConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval" default:"1h"`
	RunOnStart bool          `yaml:"run_on_start"`
}

type PipelineConfig struct {
	RunTimeout       time.Duration `yaml:"run_timeout" default:"2m"`
	DeliveryRequired bool          `yaml:"delivery_required"`
	Timezone         string        `yaml:"timezone" default:"Asia/Tehran"`
	LockTTL          time.Duration `yaml:"lock_ttl" default:"5m"`
}

type PriceConfig struct {
	Timeout time.Duration      `yaml:"timeout" default:"10s"`
	Primary PrimaryPriceConfig `yaml:"primary"`
	Backup  BackupPriceConfig  `yaml:"backup"`
}

type PrimaryPriceConfig struct {
	BaseURL string `yaml:"base_url" default:"https://api.binance.com" validate:"url"`
	Symbol  string `yaml:"symbol" default:"PAXGUSDT" validate:"required"`
}

type BackupPriceConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	BaseURL string `yaml:"base_url" default:"https://api.gold-api.com" validate:"url"`
	Metal   string `yaml:"metal" default:"XAU" validate:"required"`
	APIKey  string `yaml:"api_key"`
}

type FeedsConfig struct {
	URLs         []string      `yaml:"urls" validate:"dive,url"`
	Keywords     []string      `yaml:"keywords"`
	PerFeedLimit int           `yaml:"per_feed_limit" default:"5" validate:"gte=1"`
	TotalLimit   int           `yaml:"total_limit" default:"15" validate:"gte=1"`
	Timeout      time.Duration `yaml:"timeout" default:"8s"`
	UserAgent    string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; MarketBrief/1.0)"`
}

type ModelConfig struct {
	Strategy        string        `yaml:"strategy" default:"discovered" validate:"oneof=static discovered"`
	Candidates      []string      `yaml:"candidates"`
	MaxCandidates   int           `yaml:"max_candidates" default:"3" validate:"gte=1"`
	BaseURL         string        `yaml:"base_url" default:"https://generativelanguage.googleapis.com" validate:"url"`
	APIKey          string        `yaml:"api_key"`
	ListTimeout     time.Duration `yaml:"list_timeout" default:"10s"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" default:"60s"`
}

type TelegramConfig struct {
	BaseURL  string        `yaml:"base_url" default:"https://api.telegram.org" validate:"url"`
	BotToken string        `yaml:"bot_token"`
	ChatID   string        `yaml:"chat_id"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
}

type ReportConfig struct {
	Language           string `yaml:"language" default:"Persian"`
	PromptTemplatePath string `yaml:"prompt_template_path"`
}

type CacheConfig struct {
	Type             string        `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
	LatestTTL        time.Duration `yaml:"latest_ttl" default:"24h"`
	L1TTL            time.Duration `yaml:"l1_ttl" default:"1m"`
	MemoryMaxEntries int           `yaml:"memory_max_entries" default:"256"`
	Redis            RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"marketbrief"`
}

type KafkaConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Brokers      []string       `yaml:"brokers"`
	OutcomeTopic string         `yaml:"outcome_topic" default:"marketbrief.outcomes"`
	RequiredAcks int            `yaml:"required_acks" default:"1"`
	Compression  string         `yaml:"compression" default:"snappy"`
	Producer     ProducerConfig `yaml:"producer"`
}

type ProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	Linger       time.Duration `yaml:"linger" default:"50ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketbrief"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

// Load reads a YAML configuration file on top of the struct defaults.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment variables.
// A .env file in the working directory is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path == "" {
		return &c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.Trigger.Secret = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.Model.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("GOLD_API_KEY"); v != "" {
		c.Price.Backup.APIKey = v
	}
	if v := os.Getenv("FEED_URLS"); v != "" {
		c.Feeds.URLs = util.SplitAndTrim(v, ",")
	}
	if v := os.Getenv("FEED_KEYWORDS"); v != "" {
		c.Feeds.Keywords = util.SplitAndTrim(v, ",")
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitAndTrim(v, ",")
	}
}

// Validate checks struct tags first, then the rules that span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Model.Strategy == "static" && len(c.Model.Candidates) == 0 {
		return fmt.Errorf("model.candidates cannot be empty with the static strategy")
	}
	if c.Feeds.TotalLimit < c.Feeds.PerFeedLimit {
		return fmt.Errorf("feeds.total_limit (%d) must be >= feeds.per_feed_limit (%d)", c.Feeds.TotalLimit, c.Feeds.PerFeedLimit)
	}
	if c.Trigger.Schedule.Enabled && c.Trigger.Schedule.Interval <= 0 {
		return fmt.Errorf("trigger.schedule.interval must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collect.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collect requires kafka.enabled")
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone: %w", err)
	}
	return nil
}
