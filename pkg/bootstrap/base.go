package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/internal/stream"
)

// Base owns the process-wide clients. They are created once during startup
// and shared read-only by every concurrent invocation.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Writer   stream.Writer
	Consumer broker.Consumer
	Redis    *redis.Client
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitStream(ctx context.Context) error {
	if b.Config.Stream.Type == constants.StreamTypeRedis {
		rdb, err := NewRedisConnector(b.Config.Stream.Redis, b.Logger).Connect(ctx)
		if err != nil {
			return err
		}
		b.Redis = rdb
	}

	writer, err := stream.NewWriter(b.Config.Stream, b.Config.CircuitBreaker, b.Redis, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	b.Writer = writer
	return nil
}

func (b *Base) InitSource() error {
	consumer, err := broker.NewConsumer(b.Config.Source, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create source consumer: %w", err)
	}
	b.Consumer = consumer
	return nil
}

func (b *Base) shutdownClients() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Writer != nil {
		if err := b.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stream writer close error: %w", err))
		}
	}

	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.shutdownClients()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
