package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/internal/stream"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/retry"
	"relay/pkg/tracing"
)

const (
	TriggerHTTP   = "http"
	TriggerCLI    = "cli"
	TriggerSource = "kafka"
)

// BatchHandler runs one pipeline invocation over a batch.
type BatchHandler interface {
	HandleBatch(ctx context.Context, trigger string, batch []models.InboundMessage) models.BatchOutcome
}

// Service wires the processor and publisher into one invocation. Every
// message that does not appear in the returned outcome has been fully
// published.
type Service struct {
	processor  *Processor
	publisher  *Publisher
	streamName string
	logger     logger.Logger
}

func NewService(cfg config.PipelineConfig, streamName string, writer stream.Writer, log logger.Logger, opts ...MapperOption) (*Service, error) {
	decoder, err := NewDecoder(cfg.DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if streamName == "" {
		streamName = constants.DefaultStreamName
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.PublishRetry.MaxAttempts,
		InitialInterval: cfg.PublishRetry.InitialInterval,
		MaxInterval:     cfg.PublishRetry.MaxInterval,
		Multiplier:      cfg.PublishRetry.Multiplier,
	}

	return &Service{
		processor:  NewProcessor(decoder, NewMapper(opts...), cfg.ProcessConcurrency, log),
		publisher:  NewPublisher(writer, cfg.PublishConcurrency, policy, log),
		streamName: streamName,
		logger:     log,
	}, nil
}

func (s *Service) HandleBatch(ctx context.Context, trigger string, batch []models.InboundMessage) models.BatchOutcome {
	ctx = logging.WithBatchID(ctx, uuid.NewString())
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.handle_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.trigger", trigger),
		attribute.Int("batch.size", len(batch)),
	)

	start := time.Now()
	metrics.BatchesTotal.WithLabelValues(trigger).Inc()

	groups, failures := s.processor.Process(ctx, batch)
	outcome := s.publisher.Publish(ctx, groups, s.streamName)

	metrics.ObserveBatchDuration(trigger, time.Since(start))
	s.logger.InfowCtx(ctx, "Batch handled",
		"trigger", trigger,
		"messages", len(batch),
		"dropped", len(failures),
		"published", len(groups)-len(outcome.Retry),
		"retry", len(outcome.Retry),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return outcome
}
