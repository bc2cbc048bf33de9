package broker

import (
	"context"

	"github.com/segmentio/kafka-go"

	"relay/pkg/models"
)

// BatchFunc runs one pipeline invocation and reports which messages must be
// delivered again.
type BatchFunc func(ctx context.Context, batch []models.InboundMessage) models.BatchOutcome

type Producer interface {
	Produce(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds batches from the inbound queue into a BatchFunc until ctx
// is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler BatchFunc) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
