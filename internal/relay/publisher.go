package relay

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

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
	groupStatusPublished = "published"
	groupStatusEmpty     = "empty"
	groupStatusFailed    = "failed"
)

// Publisher writes each message group to the stream as one batch write.
type Publisher struct {
	writer      stream.Writer
	concurrency int
	policy      retry.Policy
	logger      logger.Logger
}

func NewPublisher(writer stream.Writer, concurrency int, policy retry.Policy, log logger.Logger) *Publisher {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Publisher{
		writer:      writer,
		concurrency: concurrency,
		policy:      policy,
		logger:      log,
	}
}

// Publish submits every group and returns the ids of the groups that were
// not fully accepted, in group order. A failing group never prevents the
// others from being attempted.
func (p *Publisher) Publish(ctx context.Context, groups []MessageGroup, streamName string) models.BatchOutcome {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("stream.name", streamName),
		attribute.Int("publish.groups", len(groups)),
	)

	failed := make([]bool, len(groups))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i := range groups {
		g.Go(func() error {
			if err := p.publishGroup(ctx, groups[i], streamName); err != nil {
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	outcome := models.NewBatchOutcome()
	for i, group := range groups {
		if failed[i] {
			outcome.AddRetry(group.MessageID())
		}
	}

	span.SetAttributes(attribute.Int("publish.failed", len(outcome.Retry)))
	return outcome
}

func (p *Publisher) publishGroup(ctx context.Context, group MessageGroup, streamName string) (err error) {
	ctx = logging.WithMessageID(ctx, group.MessageID())
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.publish_group")
	defer func() {
		if err != nil {
			tracing.RecordError(span, err)
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("message.id", group.MessageID()),
		attribute.Int("message.events", group.Len()),
	)

	if group.Len() == 0 {
		metrics.IncGroupsPublished(groupStatusEmpty)
		p.logger.DebugwCtx(ctx, "Message produced no events, nothing to publish")
		return nil
	}

	records, err := buildRecords(group)
	if err != nil {
		return p.fail(ctx, group, streamName, err)
	}

	err = retry.RetryWithCallback(ctx, p.policy, func() error {
		return p.put(ctx, streamName, records)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.PublishRetryAttemptsTotal.Inc()
		p.logger.WarnwCtx(ctx, "Stream write failed, retrying",
			"stream", streamName,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return p.fail(ctx, group, streamName, err)
	}

	metrics.IncGroupsPublished(groupStatusPublished)
	p.logger.InfowCtx(ctx, "Successfully submitted message",
		"stream", streamName,
		"records", len(records),
	)
	return nil
}

func (p *Publisher) put(ctx context.Context, streamName string, records []stream.Record) error {
	result, err := p.writer.PutRecords(ctx, streamName, records)
	if err != nil {
		return err
	}
	if !result.Succeeded() {
		return fmt.Errorf("%d of %d records rejected", result.FailedRecordCount, result.RecordCount)
	}
	return nil
}

func (p *Publisher) fail(ctx context.Context, group MessageGroup, streamName string, err error) error {
	pubErr := &PublishError{MessageID: group.MessageID(), Stream: streamName, Err: err}
	metrics.IncGroupsPublished(groupStatusFailed)
	p.logger.ErrorwCtx(ctx, "Failed to publish message group, marking for retry",
		"stream", streamName,
		"events", group.Len(),
		"error", err,
	)
	return pubErr
}

// buildRecords keys every record by its event id and keeps event order.
func buildRecords(group MessageGroup) ([]stream.Record, error) {
	events := group.Events()
	records := make([]stream.Record, 0, len(events))
	for _, ev := range events {
		data, err := models.MarshalEvent(ev)
		if err != nil {
			return nil, retry.NewFatalError(fmt.Errorf("failed to serialize event %s: %w", ev.EventID, err))
		}
		records = append(records, stream.Record{PartitionKey: ev.EventID, Data: data})
	}
	return records, nil
}
