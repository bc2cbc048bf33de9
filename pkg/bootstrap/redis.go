package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relay/internal/config"
	"relay/internal/logger"
)

type RedisConnector struct {
	cfg    config.RedisStreamConfig
	logger logger.Logger
}

func NewRedisConnector(cfg config.RedisStreamConfig, log logger.Logger) *RedisConnector {
	return &RedisConnector{cfg: cfg, logger: log}
}

func (rc *RedisConnector) Connect(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.cfg.Host, rc.cfg.Port),
		Password: rc.cfg.Password,
		DB:       rc.cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	rc.logger.Info("Redis connected successfully")
	return rdb, nil
}
