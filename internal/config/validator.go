package config

import (
	"fmt"
	"strings"

	"relay/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateStream(cfg.Stream); err != nil {
		errors = append(errors, err)
	}

	if err := validateSource(cfg.Source); err != nil {
		errors = append(errors, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateStream(cfg StreamConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return &ValidationError{
			Field:   "stream.name",
			Message: "outbound stream name is required",
		}
	}

	switch cfg.Type {
	case constants.StreamTypeKafka:
		return validateBrokers("stream.kafka.brokers", cfg.Kafka.Brokers)
	case constants.StreamTypeRedis:
		if cfg.Redis.Host == "" {
			return &ValidationError{
				Field:   "stream.redis.host",
				Message: "Redis host is required",
			}
		}
		if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
			return &ValidationError{
				Field:   "stream.redis.port",
				Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Redis.Port),
			}
		}
		if cfg.Redis.MaxLen < 0 {
			return &ValidationError{
				Field:   "stream.redis.max_len",
				Message: "max_len must be non-negative",
			}
		}
		return nil
	case "":
		return &ValidationError{
			Field:   "stream.type",
			Message: "stream type is required",
		}
	default:
		return &ValidationError{
			Field:   "stream.type",
			Message: fmt.Sprintf("unknown stream type: %s (supported: kafka, redis)", cfg.Type),
		}
	}
}

func validateSource(cfg SourceConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if err := validateBrokers("source.kafka.brokers", cfg.Kafka.Brokers); err != nil {
		return err
	}

	if cfg.Kafka.GroupID == "" {
		return &ValidationError{
			Field:   "source.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Kafka.Topic == "" {
		return &ValidationError{
			Field:   "source.kafka.topic",
			Message: "input topic is required",
		}
	}

	if cfg.Kafka.MaxBatchSize < 1 {
		return &ValidationError{
			Field:   "source.kafka.max_batch_size",
			Message: "max_batch_size must be positive",
		}
	}

	if cfg.Kafka.BatchWait <= 0 {
		return &ValidationError{
			Field:   "source.kafka.batch_wait",
			Message: "batch_wait must be positive",
		}
	}

	if cfg.Kafka.MaxRedeliveries < 0 {
		return &ValidationError{
			Field:   "source.kafka.max_redeliveries",
			Message: "max_redeliveries must be non-negative",
		}
	}

	return nil
}

func validateBrokers(field string, brokers []string) error {
	if len(brokers) == 0 {
		return &ValidationError{
			Field:   field,
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "broker address cannot be empty",
			}
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	validEncodings := map[string]bool{
		constants.EncodingAuto: true, constants.EncodingJSON: true, constants.EncodingBase64: true,
	}
	if !validEncodings[strings.ToLower(cfg.DefaultEncoding)] {
		return &ValidationError{
			Field:   "pipeline.default_encoding",
			Message: fmt.Sprintf("invalid encoding: %s (valid: auto, json, base64)", cfg.DefaultEncoding),
		}
	}

	if cfg.ProcessConcurrency < 1 {
		return &ValidationError{
			Field:   "pipeline.process_concurrency",
			Message: "process_concurrency must be positive",
		}
	}

	if cfg.PublishConcurrency < 1 {
		return &ValidationError{
			Field:   "pipeline.publish_concurrency",
			Message: "publish_concurrency must be positive",
		}
	}

	r := cfg.PublishRetry
	if r.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "pipeline.publish_retry.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	if r.InitialInterval < 0 || r.MaxInterval < 0 {
		return &ValidationError{
			Field:   "pipeline.publish_retry",
			Message: "retry intervals must be non-negative",
		}
	}

	if r.MaxInterval > 0 && r.InitialInterval > 0 && r.MaxInterval < r.InitialInterval {
		return &ValidationError{
			Field:   "pipeline.publish_retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if r.Multiplier <= 0 {
		return &ValidationError{
			Field:   "pipeline.publish_retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}
