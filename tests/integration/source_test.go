package integration

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/pkg/models"
)

func TestKafkaBatchConsumer_RedeliversRetriedMessages(t *testing.T) {
	infra := SetupTestInfra(t, true, false)
	createTopics(t, infra.KafkaBrokers, "telemetry", "telemetry-retry")

	producer := broker.NewKafkaProducer(infra.KafkaBrokers)
	defer producer.Close()

	ctx := context.Background()
	require.NoError(t, producer.Produce(ctx,
		kafka.Message{Topic: "telemetry", Value: []byte("ok"), Headers: []kafka.Header{{Key: "message_id", Value: []byte("m-ok")}}},
		kafka.Message{Topic: "telemetry", Value: []byte("again"), Headers: []kafka.Header{{Key: "message_id", Value: []byte("m-retry")}}},
	))

	consumer := broker.NewKafkaBatchConsumer(config.KafkaSourceConfig{
		Brokers:         infra.KafkaBrokers,
		GroupID:         "relay-test",
		Topic:           "telemetry",
		RetryTopic:      "telemetry-retry",
		MaxBatchSize:    10,
		BatchWait:       2 * time.Second,
		MaxRedeliveries: 3,
	}, createTestLogger())

	consumeCtx, cancel := context.WithCancel(ctx)
	seen := make(chan []models.InboundMessage, 4)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(ctx context.Context, batch []models.InboundMessage) models.BatchOutcome {
			seen <- batch
			outcome := models.NewBatchOutcome()
			for _, msg := range batch {
				if msg.MessageID == "m-retry" {
					outcome.AddRetry(msg.MessageID)
				}
			}
			return outcome
		})
	}()

	var ids []string
	deadline := time.After(messageWaitTimeout)
	for len(ids) < 2 {
		select {
		case batch := <-seen:
			for _, msg := range batch {
				ids = append(ids, msg.MessageID)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for batches, got %v", ids)
		}
	}
	assert.ElementsMatch(t, []string{"m-ok", "m-retry"}, ids)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   infra.KafkaBrokers,
		Topic:     "telemetry-retry",
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	readCtx, readCancel := context.WithTimeout(ctx, messageWaitTimeout)
	defer readCancel()
	m, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)
	assert.Equal(t, "again", string(m.Value))

	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "m-retry", headers["message_id"])
	assert.Equal(t, strconv.Itoa(1), headers["x-redelivery-count"])

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, consumer.Close())
}
