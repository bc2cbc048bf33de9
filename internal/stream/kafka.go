package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/pkg/metrics"
	"relay/pkg/tracing"
)

type KafkaWriter struct {
	writer *kafka.Writer
}

func NewKafkaWriter(cfg config.KafkaStreamConfig) *KafkaWriter {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = constants.KafkaWriteTimeout
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaWriter{writer: w}
}

// PutRecords writes all records in one WriteMessages call. The topic is the
// stream name and the message key is the record's partition key.
func (w *KafkaWriter) PutRecords(ctx context.Context, stream string, records []Record) (PutResult, error) {
	result := PutResult{RecordCount: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	headers := tracing.InjectTraceContext(ctx, nil)
	now := time.Now()

	msgs := make([]kafka.Message, len(records))
	for i, r := range records {
		msgs[i] = kafka.Message{
			Topic:   stream,
			Key:     []byte(r.PartitionKey),
			Value:   r.Data,
			Headers: headers,
			Time:    now,
		}
	}

	start := time.Now()
	err := w.writer.WriteMessages(ctx, msgs...)
	if err != nil {
		var writeErrs kafka.WriteErrors
		if errors.As(err, &writeErrs) {
			result.FailedRecordCount = writeErrs.Count()
		} else {
			result.FailedRecordCount = len(records)
		}
	}
	metrics.ObserveStreamWrite(constants.StreamTypeKafka, stream, time.Since(start),
		result.RecordCount-result.FailedRecordCount, result.FailedRecordCount)

	if err != nil {
		return result, fmt.Errorf("failed to write %d of %d records to kafka topic %s: %w",
			result.FailedRecordCount, result.RecordCount, stream, err)
	}
	return result, nil
}

func (w *KafkaWriter) Close() error {
	return w.writer.Close()
}
