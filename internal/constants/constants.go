package constants

import "time"

const (
	ServiceName = "relay-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	StreamTypeKafka = "kafka"
	StreamTypeRedis = "redis"
)

const (
	DefaultStreamName = "events"
)

const (
	EncodingAuto   = "auto"
	EncodingJSON   = "json"
	EncodingBase64 = "base64"
)

const (
	DefaultConcurrency     = 8
	DefaultMaxBatchSize    = 10
	DefaultBatchWait       = time.Second
	DefaultMaxRedeliveries = 5
)

const (
	HeaderMessageID       = "message_id"
	HeaderRedeliveryCount = "x-redelivery-count"
)

const (
	ShutdownTimeout = 5 * time.Second
)
