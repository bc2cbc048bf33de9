package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/pkg/models"
)

const messageWaitTimeout = 30 * time.Second

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DefaultEncoding:    "auto",
		ProcessConcurrency: 4,
		PublishConcurrency: 4,
		PublishRetry:       config.RetryConfig{MaxAttempts: 1},
	}
}

func createTestDocument(deviceID string) string {
	doc := map[string]interface{}{
		"device_id": deviceID,
		"events": map[string]interface{}{
			"new_process": []map[string]interface{}{
				{"cmdl": "ls -la", "user": "root"},
			},
			"network_connection": []map[string]interface{}{
				{"source_ip": "10.0.0.1", "destination_ip": "10.0.0.2", "destination_port": 443},
			},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func readKafkaEvents(t *testing.T, brokers []string, topic string, want int) []models.CanonicalEvent {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), messageWaitTimeout)
	defer cancel()

	events := make([]models.CanonicalEvent, 0, want)
	for len(events) < want {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			t.Fatalf("failed to read from %s after %d events: %v", topic, len(events), err)
		}
		var ev models.CanonicalEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			t.Fatalf("invalid event payload: %v", err)
		}
		if string(m.Key) != ev.EventID {
			t.Fatalf("partition key %q does not match event id %q", m.Key, ev.EventID)
		}
		events = append(events, ev)
	}
	return events
}
