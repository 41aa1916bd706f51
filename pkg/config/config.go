package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"RecoBoard/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const EnvProduction = "production"

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Log         LogConfig        `yaml:"log"`
	Engine      EngineConfig     `yaml:"engine"`
	Feed        FeedConfig       `yaml:"feed"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Queue       QueueConfig      `yaml:"queue"`
	Collector   CollectorConfig  `yaml:"collector"`
	Cache       CacheConfig      `yaml:"cache"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	RateLimit       struct {
		Capacity     float64 `yaml:"capacity" default:"10" validate:"gt=0"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1" validate:"gt=0"`
	} `yaml:"rate_limit"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type EngineConfig struct {
	// Zone is the feed's authoritative time zone; every date comparison uses it.
	Zone       string `yaml:"zone" default:"Asia/Seoul"`
	DisplayCap int    `yaml:"display_cap" default:"20" validate:"gte=0"`
	// StrictContract makes contract violations fail ingestion. Unset means
	// strict everywhere except production.
	StrictContract *bool    `yaml:"strict_contract"`
	Cutoff         string   `yaml:"cutoff" default:"16:00"`
	Holidays       []string `yaml:"holidays"`
}

type FeedConfig struct {
	Source       string        `yaml:"source" default:"http" validate:"oneof=http kafka none"`
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout" default:"10s"`
	Retries      int           `yaml:"retries" default:"3" validate:"gte=0,lte=10"`
	RetryBackoff time.Duration `yaml:"retry_backoff" default:"500ms"`
	PollSchedule string        `yaml:"poll_schedule" default:"@every 1m"`
	Breaker      struct {
		MaxRequests      uint32        `yaml:"max_requests" default:"1"`
		Interval         time.Duration `yaml:"interval" default:"60s"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
		FailureThreshold uint32        `yaml:"failure_threshold" default:"5" validate:"gte=1"`
	} `yaml:"breaker"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	FeedTopic    string   `yaml:"feed_topic" default:"recoboard.feed"`
	EventsTopic  string   `yaml:"events_topic" default:"recoboard.events"`
	RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" default:"recoboard"`
		StartOffset string        `yaml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
		Workers     int           `yaml:"workers" default:"1" validate:"gte=1"`
		BufferSize  int           `yaml:"buffer_size" default:"64"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"recoboard"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"recoboard"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	MaxDelay   time.Duration `yaml:"max_delay" default:"5m"`
	JobTimeout time.Duration `yaml:"job_timeout" default:"30s"`
}

type CollectorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval" default:"30s"`
	Threshold int           `yaml:"threshold" default:"100"`
	Topic     string        `yaml:"topic" default:"anomaly.digest"`
}

type CacheConfig struct {
	PayloadTTL       time.Duration `yaml:"payload_ttl" default:"30s"`
	PayloadEntries   int           `yaml:"payload_entries" default:"256"`
	NoticeTTL        time.Duration `yaml:"notice_ttl" default:"720h"`
	MemoryTTL        time.Duration `yaml:"memory_ttl" default:"5m"`
	MemoryMaxEntries int           `yaml:"memory_max_entries" default:"10000"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, applies environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse builds a validated config from YAML bytes.
func Parse(b []byte) (*Config, error) {
	c, err := parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// parse applies defaults first so values present in the file win.
func parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := getenv("FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ENGINE_DISPLAY_CAP"); v != "" {
		c.Engine.DisplayCap = util.ParseIntDefault(v, c.Engine.DisplayCap)
	}
	if b := util.ParseBoolPtr(getenv("ENGINE_STRICT_CONTRACT")); b != nil {
		c.Engine.StrictContract = b
	}
}

// Validate checks tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := ParseCutoff(c.Engine.Cutoff); err != nil {
		return err
	}
	if _, err := c.HolidayDates(); err != nil {
		return err
	}

	switch c.Feed.Source {
	case "http":
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.url is required when feed.source is http")
		}
	case "kafka":
		if !c.Kafka.Enabled || len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("feed.source kafka requires kafka.enabled and kafka.brokers")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	// audit jobs are only drained when there is a store to write them to
	if c.Queue.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("queue requires clickhouse.enabled")
	}
	if c.Collector.Enabled && !c.Queue.Enabled {
		return fmt.Errorf("collector requires queue.enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	return nil
}

// Location resolves engine.zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Zone)
	if err != nil {
		return nil, fmt.Errorf("engine.zone %q: %w", c.Engine.Zone, err)
	}
	return loc, nil
}

// StrictContract applies the environment rule when engine.strict_contract is unset.
func (c *Config) StrictContract() bool {
	if c.Engine.StrictContract != nil {
		return *c.Engine.StrictContract
	}
	return c.Environment != EnvProduction
}

// HolidayDates parses engine.holidays (YYYY-MM-DD) into a set of date keys.
func (c *Config) HolidayDates() (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(c.Engine.Holidays))
	for _, h := range c.Engine.Holidays {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("engine.holidays %q: %w", h, err)
		}
		out[d.Format("2006-01-02")] = struct{}{}
	}
	return out, nil
}

// ParseCutoff parses an "HH:MM" wall-clock cutoff into an offset from midnight.
func ParseCutoff(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("engine.cutoff %q: want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
