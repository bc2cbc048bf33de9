package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
	"relay/internal/logger"
)

func TestNewWriter(t *testing.T) {
	log := logger.NopLogger()
	kafkaCfg := config.StreamConfig{
		Type: "kafka",
		Name: "events",
		Kafka: config.KafkaStreamConfig{Brokers: []string{"localhost:9092"}, RequiredAcks: -1},
	}

	w, err := NewWriter(kafkaCfg, config.CircuitBreakerConfig{}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &KafkaWriter{}, w)
	require.NoError(t, w.Close())

	w, err = NewWriter(kafkaCfg, config.CircuitBreakerConfig{Enabled: true}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &BreakerWriter{}, w)
	require.NoError(t, w.Close())

	_, err = NewWriter(config.StreamConfig{Type: "redis", Name: "events"}, config.CircuitBreakerConfig{}, nil, log)
	assert.Error(t, err)

	_, err = NewWriter(config.StreamConfig{Type: "kinesis", Name: "events"}, config.CircuitBreakerConfig{}, nil, log)
	assert.Error(t, err)
}
