package stream

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"relay/internal/config"
	"relay/pkg/circuitbreaker"
)

// BreakerWriter fails batch writes fast while the outbound stream keeps
// failing, instead of letting every group wait for a write timeout.
type BreakerWriter struct {
	next Writer
	cb   *circuitbreaker.Wrapper
}

func NewBreakerWriter(next Writer, cfg config.CircuitBreakerConfig, name string) *BreakerWriter {
	cbConfig := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &BreakerWriter{
		next: next,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (w *BreakerWriter) PutRecords(ctx context.Context, stream string, records []Record) (PutResult, error) {
	var result PutResult
	_, err := w.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		var err error
		result, err = w.next.PutRecords(ctx, stream, records)
		return nil, err
	})
	if err != nil {
		if w.cb.IsOpen() {
			if result.RecordCount == 0 {
				result = PutResult{RecordCount: len(records), FailedRecordCount: len(records)}
			}
			return result, fmt.Errorf("circuit breaker %s is open: %w", w.cb.Name(), err)
		}
		return result, err
	}
	return result, nil
}

func (w *BreakerWriter) State() string {
	return w.cb.State().String()
}

func (w *BreakerWriter) Close() error {
	return w.next.Close()
}
