package stream

import "context"

// Record is one entry of a batch write. PartitionKey decides placement in
// the stream; Data is the serialized payload.
type Record struct {
	PartitionKey string
	Data         []byte
}

// PutResult reports how many records of one batch write were rejected.
type PutResult struct {
	RecordCount       int
	FailedRecordCount int
}

func (r PutResult) Succeeded() bool {
	return r.FailedRecordCount == 0
}

// Writer submits an ordered batch of records to a named stream in a single
// call. Implementations are safe for concurrent use.
type Writer interface {
	PutRecords(ctx context.Context, stream string, records []Record) (PutResult, error)
	Close() error
}
