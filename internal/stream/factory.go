package stream

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
)

// NewWriter builds the writer for the configured backend, wrapped in a
// circuit breaker when enabled. rdb is only used by the redis backend.
func NewWriter(cfg config.StreamConfig, cbCfg config.CircuitBreakerConfig, rdb *redis.Client, log logger.Logger) (Writer, error) {
	var w Writer
	switch cfg.Type {
	case constants.StreamTypeKafka:
		w = NewKafkaWriter(cfg.Kafka)
	case constants.StreamTypeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis stream requires a redis client")
		}
		w = NewRedisWriter(rdb, cfg.Redis.MaxLen)
	default:
		return nil, fmt.Errorf("unknown stream type: %s", cfg.Type)
	}

	if cbCfg.Enabled {
		log.Infow("Stream circuit breaker enabled", "stream_type", cfg.Type)
		return NewBreakerWriter(w, cbCfg, "stream-"+cfg.Type), nil
	}
	return w, nil
}
