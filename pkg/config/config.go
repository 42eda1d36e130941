package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		OutcomeTopic string   `yaml:"outcome_topic"`
		RunTopic     string   `yaml:"run_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MarketData struct {
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		Timeout      time.Duration `yaml:"timeout"`
		RatePerSec   float64       `yaml:"rate_per_sec"`
		RateBurst    int           `yaml:"rate_burst"`
		ContextTTL   time.Duration `yaml:"context_ttl"`
		CacheContext bool          `yaml:"cache_context"`
	} `yaml:"marketdata"`
	Run struct {
		Symbols         []string      `yaml:"symbols"`
		Lookback        time.Duration `yaml:"lookback"`
		Dispatcher      string        `yaml:"dispatcher"`
		DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
		LocalWorkers    int           `yaml:"local_workers"`
		LocalQueueSize  int           `yaml:"local_queue_size"`
	} `yaml:"run"`
	Aggregator struct {
		BucketSize      time.Duration `yaml:"bucket_size"`
		PeriodsPerYear  float64       `yaml:"periods_per_year"`
		LoadConcurrency int           `yaml:"load_concurrency"`
	} `yaml:"aggregator"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Run.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("DISPATCHER"); v != "" {
		c.Run.Dispatcher = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Run.Dispatcher == "" {
		return fmt.Errorf("run.dispatcher is required")
	}
	if c.Run.Dispatcher != "local" && c.Run.Dispatcher != "redis" {
		return fmt.Errorf("run.dispatcher must be 'local' or 'redis', got '%s'", c.Run.Dispatcher)
	}
	if len(c.Run.Symbols) == 0 {
		return fmt.Errorf("run.symbols cannot be empty")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata.base_url is required")
	}
	return nil
}
