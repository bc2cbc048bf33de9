package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
	"relay/internal/relay"
	"relay/internal/stream"
	"relay/pkg/models"
)

func TestPipeline_KafkaStream(t *testing.T) {
	infra := SetupTestInfra(t, true, false)
	createTopics(t, infra.KafkaBrokers, "events")

	writer := stream.NewKafkaWriter(config.KafkaStreamConfig{
		Brokers:      infra.KafkaBrokers,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	})
	defer writer.Close()

	svc, err := relay.NewService(createTestPipelineConfig(), "events", writer, createTestLogger())
	require.NoError(t, err)

	outcome := svc.HandleBatch(context.Background(), relay.TriggerCLI, []models.InboundMessage{
		{MessageID: "m1", Body: []byte(createTestDocument("dev-1"))},
		{MessageID: "m2", Body: []byte(`{"device_id":"dev-2"}`)},
	})
	assert.Empty(t, outcome.Retry)

	events := readKafkaEvents(t, infra.KafkaBrokers, "events", 2)
	assert.Equal(t, models.EventTypeNewProcess, events[0].Type)
	assert.Equal(t, models.EventTypeNetworkConnection, events[1].Type)
	for _, ev := range events {
		assert.Equal(t, "dev-1", ev.DeviceID)
	}
}

func TestPipeline_RedisStream(t *testing.T) {
	infra := SetupTestInfra(t, false, true)
	ctx := context.Background()

	writer := stream.NewRedisWriter(infra.RedisClient, 0)
	svc, err := relay.NewService(createTestPipelineConfig(), "events", writer, createTestLogger())
	require.NoError(t, err)

	outcome := svc.HandleBatch(ctx, relay.TriggerCLI, []models.InboundMessage{
		{MessageID: "m1", Body: []byte(createTestDocument("dev-1"))},
	})
	assert.Empty(t, outcome.Retry)

	entries, err := infra.RedisClient.XRange(ctx, "events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for i, entry := range entries {
		var ev models.CanonicalEvent
		require.NoError(t, json.Unmarshal([]byte(entry.Values["payload"].(string)), &ev))
		assert.Equal(t, ev.EventID, entry.Values["partition_key"])
		if i == 0 {
			assert.Equal(t, models.EventTypeNewProcess, ev.Type)
		}
	}
}

func TestPipeline_UnreachableStreamMarksRetry(t *testing.T) {
	infra := SetupTestInfra(t, false, true)

	require.NoError(t, infra.RedisClient.Set(context.Background(), "events", "not-a-stream", 0).Err())

	writer := stream.NewRedisWriter(infra.RedisClient, 0)
	svc, err := relay.NewService(createTestPipelineConfig(), "events", writer, createTestLogger())
	require.NoError(t, err)

	outcome := svc.HandleBatch(context.Background(), relay.TriggerCLI, []models.InboundMessage{
		{MessageID: "m1", Body: []byte(createTestDocument("dev-1"))},
	})
	assert.Equal(t, []string{"m1"}, outcome.RetryIDs())
}
