package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/retry"
	"relay/pkg/tracing"
)

const dlqReasonMaxRedeliveries = "max_redeliveries_exceeded"

// KafkaBatchConsumer reads the inbound topic in batches, hands each batch to
// the pipeline, re-produces the messages it reports for retry and then
// commits every fetched offset. A message is never committed before its
// redelivery copy has been written.
type KafkaBatchConsumer struct {
	cfg      config.KafkaSourceConfig
	reader   messageReader
	producer Producer
	logger   logger.Logger
}

func NewKafkaBatchConsumer(cfg config.KafkaSourceConfig, log logger.Logger) *KafkaBatchConsumer {
	cfg = withSourceDefaults(cfg)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.BatchWait,
	})

	return newKafkaBatchConsumer(cfg, reader, NewKafkaProducer(cfg.Brokers), log)
}

func newKafkaBatchConsumer(cfg config.KafkaSourceConfig, reader messageReader, producer Producer, log logger.Logger) *KafkaBatchConsumer {
	return &KafkaBatchConsumer{
		cfg:      withSourceDefaults(cfg),
		reader:   reader,
		producer: producer,
		logger:   log,
	}
}

func withSourceDefaults(cfg config.KafkaSourceConfig) config.KafkaSourceConfig {
	if cfg.RetryTopic == "" {
		cfg.RetryTopic = cfg.Topic
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = constants.DefaultMaxBatchSize
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = constants.DefaultBatchWait
	}
	return cfg
}

func (c *KafkaBatchConsumer) Consume(ctx context.Context, handler BatchFunc) error {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	c.logger.InfowCtx(ctx, "Started consuming",
		"topic", c.cfg.Topic,
		"group_id", c.cfg.GroupID,
		"max_batch_size", c.cfg.MaxBatchSize,
		"batch_wait", c.cfg.BatchWait,
	)

	for {
		msgs, err := c.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(ctx, "Stopped consuming",
					"topic", c.cfg.Topic,
					"reason", "context canceled",
				)
				return nil
			}
			c.logger.ErrorwCtx(ctx, "Error fetching kafka messages",
				"error", err,
				"topic", c.cfg.Topic,
			)
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		// uncommitted messages are fetched again after restart
		if ctx.Err() != nil {
			return nil
		}

		if err := c.handleBatch(ctx, msgs, handler); err != nil {
			return err
		}
	}
}

// fetchBatch blocks for the first message, then collects more until the
// batch is full or BatchWait elapses.
func (c *KafkaBatchConsumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafka.Message{first}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchWait)
	defer cancel()

	for len(msgs) < c.cfg.MaxBatchSize {
		m, err := c.reader.FetchMessage(waitCtx)
		if err != nil {
			break
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *KafkaBatchConsumer) handleBatch(ctx context.Context, msgs []kafka.Message, handler BatchFunc) error {
	ctx, span := tracing.StartSpanFromKafkaMessages(ctx, "kafka.consume_batch", msgs[0].Headers)
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.source", c.cfg.Topic),
		attribute.Int("messaging.batch.message_count", len(msgs)),
	)

	batch, byID := toInboundBatch(msgs)
	outcome := handler(ctx, batch)

	redeliver, dead := planRedelivery(outcome, byID, c.cfg)
	if err := c.produce(ctx, redeliver, dead); err != nil {
		tracing.RecordError(span, err)
		c.logger.ErrorwCtx(ctx, "Failed to redeliver messages, leaving batch uncommitted",
			"error", err,
			"topic", c.cfg.Topic,
			"retry", len(redeliver),
			"dlq", len(dead),
		)
		return fmt.Errorf("redelivery to %s failed: %w", c.cfg.RetryTopic, err)
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit messages",
			"error", err,
			"topic", c.cfg.Topic,
			"count", len(msgs),
		)
	}
	return nil
}

func (c *KafkaBatchConsumer) produce(ctx context.Context, redeliver, dead []kafka.Message) error {
	policy := retry.DefaultPolicy()
	err := retry.Retry(ctx, policy, func() error {
		return c.producer.Produce(ctx, append(append([]kafka.Message{}, redeliver...), dead...)...)
	})
	if err != nil {
		return err
	}

	if len(redeliver) > 0 {
		metrics.RedeliveriesTotal.WithLabelValues(c.cfg.RetryTopic).Add(float64(len(redeliver)))
		c.logger.InfowCtx(ctx, "Messages re-enqueued for retry",
			"retry_topic", c.cfg.RetryTopic,
			"count", len(redeliver),
		)
	}
	if len(dead) > 0 {
		metrics.DLQMessagesTotal.WithLabelValues(c.cfg.Topic, dlqReasonMaxRedeliveries).Add(float64(len(dead)))
		c.logger.WarnwCtx(ctx, "Messages sent to DLQ",
			"dlq_topic", c.cfg.DLQTopic,
			"count", len(dead),
			"reason", dlqReasonMaxRedeliveries,
		)
	}
	return nil
}

func (c *KafkaBatchConsumer) Close() error {
	err := c.reader.Close()
	if closeErr := c.producer.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// toInboundBatch keeps fetch order. A missing or repeated message_id header
// falls back to the record coordinates, suffixed while they are taken, so
// ids stay unique within the batch.
func toInboundBatch(msgs []kafka.Message) ([]models.InboundMessage, map[string]kafka.Message) {
	batch := make([]models.InboundMessage, 0, len(msgs))
	byID := make(map[string]kafka.Message, len(msgs))

	for _, m := range msgs {
		id := headerValue(m.Headers, constants.HeaderMessageID)
		if _, dup := byID[id]; id == "" || dup {
			id = freeID(byID, coordinates(m))
		}
		byID[id] = m
		batch = append(batch, models.InboundMessage{MessageID: id, Body: m.Value})
	}
	return batch, byID
}

// planRedelivery turns the retry list into copies for the retry topic, or
// for the DLQ once a message has been redelivered MaxRedeliveries times.
// Without a DLQ topic such messages keep cycling through the retry topic.
func planRedelivery(outcome models.BatchOutcome, byID map[string]kafka.Message, cfg config.KafkaSourceConfig) (redeliver, dead []kafka.Message) {
	for _, id := range outcome.RetryIDs() {
		m, ok := byID[id]
		if !ok {
			continue
		}

		count := redeliveryCount(m.Headers) + 1
		headers := setHeader(m.Headers, constants.HeaderMessageID, id)
		headers = setHeader(headers, constants.HeaderRedeliveryCount, strconv.Itoa(count))

		copied := kafka.Message{
			Topic:   cfg.RetryTopic,
			Key:     m.Key,
			Value:   m.Value,
			Headers: headers,
			Time:    time.Now(),
		}
		if cfg.DLQTopic != "" && cfg.MaxRedeliveries > 0 && count > cfg.MaxRedeliveries {
			copied.Topic = cfg.DLQTopic
			dead = append(dead, copied)
			continue
		}
		redeliver = append(redeliver, copied)
	}
	return redeliver, dead
}

func coordinates(m kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

func freeID(taken map[string]kafka.Message, base string) string {
	id := base
	for n := 1; ; n++ {
		if _, ok := taken[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s#%d", base, n)
	}
}

func redeliveryCount(headers []kafka.Header) int {
	n, err := strconv.Atoi(headerValue(headers, constants.HeaderRedeliveryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// setHeader returns a copy of headers with key set to value.
func setHeader(headers []kafka.Header, key, value string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	replaced := false
	for _, h := range headers {
		if h.Key == key {
			out = append(out, kafka.Header{Key: key, Value: []byte(value)})
			replaced = true
			continue
		}
		out = append(out, h)
	}
	if !replaced {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
