package broker

import (
	"fmt"

	"relay/internal/config"
	"relay/internal/logger"
)

// NewConsumer returns nil when the inbound source is disabled.
func NewConsumer(cfg config.SourceConfig, log logger.Logger) (Consumer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("source topic is required")
	}
	return NewKafkaBatchConsumer(cfg.Kafka, log), nil
}
