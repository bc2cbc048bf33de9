package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"relay/internal/logger"
	"relay/internal/stream"
	"relay/pkg/models"
)

type putCall struct {
	stream  string
	records []stream.Record
}

// fakeWriter records every batch write. fail decides, per call, whether the
// write errors out.
type fakeWriter struct {
	mu    sync.Mutex
	calls []putCall
	fail  func(records []stream.Record) bool
}

func (w *fakeWriter) PutRecords(ctx context.Context, streamName string, records []stream.Record) (stream.PutResult, error) {
	w.mu.Lock()
	w.calls = append(w.calls, putCall{stream: streamName, records: records})
	fail := w.fail
	w.mu.Unlock()

	if fail != nil && fail(records) {
		return stream.PutResult{RecordCount: len(records)}, errors.New("stream unavailable")
	}
	return stream.PutResult{RecordCount: len(records)}, nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) Calls() []putCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]putCall, len(w.calls))
	copy(out, w.calls)
	return out
}

func (w *fakeWriter) Events(t *testing.T) []models.CanonicalEvent {
	t.Helper()
	var events []models.CanonicalEvent
	for _, call := range w.Calls() {
		for _, rec := range call.records {
			var ev models.CanonicalEvent
			require.NoError(t, json.Unmarshal(rec.Data, &ev))
			require.Equal(t, ev.EventID, rec.PartitionKey)
			events = append(events, ev)
		}
	}
	return events
}

func failDevice(deviceID string) func([]stream.Record) bool {
	return func(records []stream.Record) bool {
		for _, rec := range records {
			var ev models.CanonicalEvent
			if err := json.Unmarshal(rec.Data, &ev); err == nil && ev.DeviceID == deviceID {
				return true
			}
		}
		return false
	}
}

func newTestLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func documentJSON(deviceID string, newProcess, networkConnection []map[string]interface{}) string {
	if newProcess == nil {
		newProcess = []map[string]interface{}{}
	}
	if networkConnection == nil {
		networkConnection = []map[string]interface{}{}
	}
	b, err := json.Marshal(map[string]interface{}{
		"device_id": deviceID,
		"events": map[string]interface{}{
			"new_process":        newProcess,
			"network_connection": networkConnection,
		},
	})
	if err != nil {
		panic(err)
	}
	return string(b)
}

func jsonMessage(id, body string) models.InboundMessage {
	return models.InboundMessage{MessageID: id, Body: []byte(body)}
}

func base64Message(id, body string) models.InboundMessage {
	return models.InboundMessage{MessageID: id, Body: []byte(base64.StdEncoding.EncodeToString([]byte(body)))}
}

func process(cmdl, user string) map[string]interface{} {
	return map[string]interface{}{"cmdl": cmdl, "user": user}
}

func connection(src, dst string, port int) map[string]interface{} {
	return map[string]interface{}{"source_ip": src, "destination_ip": dst, "destination_port": port}
}
