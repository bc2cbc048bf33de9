package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Stream         StreamConfig         `mapstructure:"stream"`
	Source         SourceConfig         `mapstructure:"source"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	API            APIConfig            `mapstructure:"api"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

// StreamConfig describes the outbound event stream. Name is the stream
// (Kafka topic or Redis stream key) every canonical event is written to.
type StreamConfig struct {
	Type  string            `mapstructure:"type"` // "kafka" or "redis"
	Name  string            `mapstructure:"name"`
	Kafka KafkaStreamConfig `mapstructure:"kafka"`
	Redis RedisStreamConfig `mapstructure:"redis"`
}

type KafkaStreamConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	RequiredAcks int           `mapstructure:"required_acks"` // -1 all, 1 leader
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisStreamConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// SourceConfig configures the optional Kafka adapter that feeds batches
// into the pipeline and redelivers the messages it reports for retry.
type SourceConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Kafka   KafkaSourceConfig `mapstructure:"kafka"`
}

type KafkaSourceConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	Topic           string        `mapstructure:"topic"`
	RetryTopic      string        `mapstructure:"retry_topic"`
	DLQTopic        string        `mapstructure:"dlq_topic"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	BatchWait       time.Duration `mapstructure:"batch_wait"`
	MaxRedeliveries int           `mapstructure:"max_redeliveries"`
}

type PipelineConfig struct {
	DefaultEncoding    string      `mapstructure:"default_encoding"` // "auto", "json", "base64"
	ProcessConcurrency int         `mapstructure:"process_concurrency"`
	PublishConcurrency int         `mapstructure:"publish_concurrency"`
	PublishRetry       RetryConfig `mapstructure:"publish_retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
