package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"relay/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", constants.DefaultHTTPTimeout)
	viper.SetDefault("server.write_timeout_seconds", constants.DefaultHTTPTimeout)

	viper.SetDefault("stream.type", constants.StreamTypeKafka)
	viper.SetDefault("stream.name", constants.DefaultStreamName)
	viper.SetDefault("stream.kafka.required_acks", -1)
	viper.SetDefault("stream.kafka.write_timeout", constants.KafkaWriteTimeout)

	viper.SetDefault("source.kafka.max_batch_size", constants.DefaultMaxBatchSize)
	viper.SetDefault("source.kafka.batch_wait", constants.DefaultBatchWait)
	viper.SetDefault("source.kafka.max_redeliveries", constants.DefaultMaxRedeliveries)

	viper.SetDefault("pipeline.default_encoding", constants.EncodingAuto)
	viper.SetDefault("pipeline.process_concurrency", constants.DefaultConcurrency)
	viper.SetDefault("pipeline.publish_concurrency", constants.DefaultConcurrency)
	viper.SetDefault("pipeline.publish_retry.max_attempts", 1)
	viper.SetDefault("pipeline.publish_retry.multiplier", 2.0)

	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("stream.type", "STREAM_TYPE")
	viper.BindEnv("stream.name", "STREAM_NAME")
	viper.BindEnv("stream.kafka.brokers", "STREAM_KAFKA_BROKERS")
	viper.BindEnv("stream.redis.host", "STREAM_REDIS_HOST")
	viper.BindEnv("stream.redis.port", "STREAM_REDIS_PORT")
	viper.BindEnv("stream.redis.password", "STREAM_REDIS_PASSWORD")
	viper.BindEnv("stream.redis.db", "STREAM_REDIS_DB")

	viper.BindEnv("source.enabled", "SOURCE_ENABLED")
	viper.BindEnv("source.kafka.brokers", "SOURCE_KAFKA_BROKERS")
	viper.BindEnv("source.kafka.group_id", "SOURCE_KAFKA_GROUP_ID")
	viper.BindEnv("source.kafka.topic", "SOURCE_KAFKA_TOPIC")
	viper.BindEnv("source.kafka.retry_topic", "SOURCE_KAFKA_RETRY_TOPIC")
	viper.BindEnv("source.kafka.dlq_topic", "SOURCE_KAFKA_DLQ_TOPIC")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides handles the comma separated broker lists, which viper
// does not split into slices on its own.
func applyEnvOverrides(cfg *Config) {
	if brokers := splitList(viper.GetString("STREAM_KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Stream.Kafka.Brokers = brokers
	}
	if brokers := splitList(viper.GetString("SOURCE_KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Source.Kafka.Brokers = brokers
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
