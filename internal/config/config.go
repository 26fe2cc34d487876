package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "wisefido-physio/internal/common/config"

	"gopkg.in/yaml.v2"
)

// 默认上游传感器地址（nordic / mbient 两个数据源）
const (
	DefaultNordicURL = "http://153.109.22.167:8088/multi-sensor/properties/nordicCount"
	DefaultMbientURL = "http://153.109.22.167:8088/multi-sensor/properties/mbientCount"

	SourceNordic = "nordic"
	SourceMbient = "mbient"
)

// Config wisefido-physio 服务配置
type Config struct {
	ServiceName string `yaml:"service_name"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Providers struct {
		NordicURL string `yaml:"nordic_url"`
		MbientURL string `yaml:"mbient_url"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"providers"`

	Poller struct {
		IntervalMs       int `yaml:"interval_ms"`
		SubscriberBuffer int `yaml:"subscriber_buffer"`
	} `yaml:"poller"`

	Sessions struct {
		Dir          string `yaml:"dir"`
		RecordSource string `yaml:"record_source"` // record 接口和自动录制使用的数据源
		AutoRecord   bool   `yaml:"auto_record"`
	} `yaml:"sessions"`

	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	Redis struct {
		Enabled               bool `yaml:"enabled"`
		commoncfg.RedisConfig `yaml:",inline"`
		Stream                string `yaml:"stream"`
		StreamMaxLen          int64  `yaml:"stream_max_len"`
		LatestKey             string `yaml:"latest_key"`
		LatestTTLSec          int    `yaml:"latest_ttl_sec"`
	} `yaml:"redis"`

	MQTT struct {
		Enabled              bool `yaml:"enabled"`
		commoncfg.MQTTConfig `yaml:",inline"`
		Topic                string `yaml:"topic"`
	} `yaml:"mqtt"`

	Kafka struct {
		Enabled               bool `yaml:"enabled"`
		commoncfg.KafkaConfig `yaml:",inline"`
	} `yaml:"kafka"`

	DBEnabled bool                     `yaml:"db_enabled"`
	Database  commoncfg.DatabaseConfig `yaml:"database"`
}

// Load 加载配置：默认值 -> CONFIG_FILE (YAML) -> 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.ServiceName = "wisefido-physio"
	cfg.HTTP.Addr = ":3000"

	cfg.Providers.NordicURL = DefaultNordicURL
	cfg.Providers.MbientURL = DefaultMbientURL
	cfg.Providers.TimeoutMs = 5000

	cfg.Poller.IntervalMs = 1000
	cfg.Poller.SubscriberBuffer = 16

	cfg.Sessions.Dir = "sessions"
	cfg.Sessions.RecordSource = SourceNordic

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.MaxSizeMB = 50
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 14

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Stream = "telemetry:snapshot:stream"
	cfg.Redis.StreamMaxLen = 10000
	cfg.Redis.LatestKey = "telemetry:snapshot:latest"
	cfg.Redis.LatestTTLSec = 30

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-physio"
	cfg.MQTT.Topic = "physio/telemetry/snapshot"

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "telemetry.snapshot"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	return cfg
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Providers.NordicURL = getEnv("NORDIC_URL", cfg.Providers.NordicURL)
	cfg.Providers.MbientURL = getEnv("MBIENT_URL", cfg.Providers.MbientURL)
	cfg.Providers.TimeoutMs = getEnvInt("PROVIDER_TIMEOUT_MS", cfg.Providers.TimeoutMs)

	cfg.Poller.IntervalMs = getEnvInt("POLL_INTERVAL_MS", cfg.Poller.IntervalMs)
	cfg.Poller.SubscriberBuffer = getEnvInt("SUBSCRIBER_BUFFER", cfg.Poller.SubscriberBuffer)

	cfg.Sessions.Dir = getEnv("SESSIONS_DIR", cfg.Sessions.Dir)
	cfg.Sessions.RecordSource = getEnv("RECORD_SOURCE", cfg.Sessions.RecordSource)
	cfg.Sessions.AutoRecord = getEnvBool("SESSION_AUTO_RECORD", cfg.Sessions.AutoRecord)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Log.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", cfg.Log.MaxAgeDays)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.RedisConfig.LoadFromEnv("REDIS")
	cfg.Redis.Stream = getEnv("REDIS_STREAM", cfg.Redis.Stream)
	cfg.Redis.LatestKey = getEnv("REDIS_LATEST_KEY", cfg.Redis.LatestKey)
	cfg.Redis.LatestTTLSec = getEnvInt("REDIS_LATEST_TTL_SEC", cfg.Redis.LatestTTLSec)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", cfg.MQTT.Topic)

	cfg.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.KafkaConfig.LoadFromEnv("KAFKA")

	cfg.DBEnabled = getEnvBool("DB_ENABLED", cfg.DBEnabled)
	cfg.Database.LoadFromEnv("DB")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Providers.NordicURL == "" || c.Providers.MbientURL == "" {
		return fmt.Errorf("provider urls are required")
	}
	if c.Providers.TimeoutMs <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %d", c.Providers.TimeoutMs)
	}
	if c.Poller.IntervalMs <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", c.Poller.IntervalMs)
	}
	if c.Poller.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber buffer must be positive, got %d", c.Poller.SubscriberBuffer)
	}
	if c.Sessions.Dir == "" {
		return fmt.Errorf("sessions dir is required")
	}
	switch c.Sessions.RecordSource {
	case SourceNordic, SourceMbient:
	default:
		return fmt.Errorf("unsupported record source: %s", c.Sessions.RecordSource)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}

// PollInterval 轮询周期
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalMs) * time.Millisecond
}

// ProviderTimeout 单次拉取超时
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutMs) * time.Millisecond
}

// ProviderURLs 数据源 -> URL，顺序固定为 nordic, mbient
func (c *Config) ProviderURLs() [][2]string {
	return [][2]string{
		{SourceNordic, c.Providers.NordicURL},
		{SourceMbient, c.Providers.MbientURL},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}
