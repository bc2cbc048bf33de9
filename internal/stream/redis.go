package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"relay/internal/constants"
	"relay/pkg/metrics"
)

const (
	fieldPartitionKey = "partition_key"
	fieldPayload      = "payload"
)

// RedisWriter appends records to a Redis stream. One batch is sent as a
// single MULTI/EXEC transaction, so a group lands in the stream contiguously.
type RedisWriter struct {
	client *redis.Client
	maxLen int64
}

func NewRedisWriter(client *redis.Client, maxLen int64) *RedisWriter {
	return &RedisWriter{client: client, maxLen: maxLen}
}

func (w *RedisWriter) PutRecords(ctx context.Context, stream string, records []Record) (PutResult, error) {
	result := PutResult{RecordCount: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	pipe := w.client.TxPipeline()
	cmds := make([]*redis.StringCmd, len(records))
	for i, r := range records {
		args := &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				fieldPartitionKey: r.PartitionKey,
				fieldPayload:      r.Data,
			},
		}
		if w.maxLen > 0 {
			args.MaxLen = w.maxLen
			args.Approx = true
		}
		cmds[i] = pipe.XAdd(ctx, args)
	}

	start := time.Now()
	_, err := pipe.Exec(ctx)
	for _, cmd := range cmds {
		if cmd.Err() != nil {
			result.FailedRecordCount++
		}
	}
	if err != nil && result.FailedRecordCount == 0 {
		result.FailedRecordCount = len(records)
	}
	metrics.ObserveStreamWrite(constants.StreamTypeRedis, stream, time.Since(start),
		result.RecordCount-result.FailedRecordCount, result.FailedRecordCount)

	if err != nil {
		return result, fmt.Errorf("failed to append %d of %d records to redis stream %s: %w",
			result.FailedRecordCount, result.RecordCount, stream, err)
	}
	return result, nil
}

// Close is a no-op; the client is owned by the caller that created it.
func (w *RedisWriter) Close() error {
	return nil
}
