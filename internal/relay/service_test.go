package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
	"relay/internal/stream"
	"relay/pkg/models"
)

func newTestService(t *testing.T, w stream.Writer) *Service {
	t.Helper()
	log, _ := newTestLogger()
	svc, err := NewService(config.PipelineConfig{
		DefaultEncoding:    "auto",
		ProcessConcurrency: 4,
		PublishConcurrency: 4,
		PublishRetry:       config.RetryConfig{MaxAttempts: 1},
	}, "events", w, log)
	require.NoError(t, err)
	return svc
}

func TestService_ProcessFailureIsNotRetried(t *testing.T) {
	w := &fakeWriter{}
	svc := newTestService(t, w)

	outcome := svc.HandleBatch(context.Background(), TriggerCLI, []models.InboundMessage{
		base64Message("A", documentJSON("dev-a", []map[string]interface{}{process("ls -la", "root")}, nil)),
		jsonMessage("B", documentJSON("dev-b", nil, []map[string]interface{}{{"bogus": true}})),
	})

	assert.Empty(t, outcome.Retry)
	events := w.Events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "dev-a", events[0].DeviceID)
	assert.Equal(t, models.EventTypeNewProcess, events[0].Type)
	assert.Equal(t, models.NewProcessDetails{Cmdl: []byte(`"ls -la"`), User: []byte(`"root"`)}, events[0].Details)
}

func TestService_PublishFailureIsRetried(t *testing.T) {
	w := &fakeWriter{fail: failDevice("dev-1")}
	svc := newTestService(t, w)

	outcome := svc.HandleBatch(context.Background(), TriggerCLI, []models.InboundMessage{
		jsonMessage("msg-1", documentJSON("dev-1", nil, []map[string]interface{}{connection("10.0.0.1", "10.0.0.2", 443)})),
	})

	assert.Equal(t, []string{"msg-1"}, outcome.RetryIDs())
	calls := w.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].records, 1)
	assert.JSONEq(t,
		`{"source_ip":"10.0.0.1","destination_ip":"10.0.0.2","destination_port":443}`,
		string(mustDetails(t, calls[0].records[0].Data)),
	)
}

// A redelivered message that eventually publishes yields its complete event
// set, under new event ids.
func TestService_RedeliveryNeverLosesEvents(t *testing.T) {
	failing := true
	w := &fakeWriter{fail: func([]stream.Record) bool { return failing }}
	svc := newTestService(t, w)

	msg := jsonMessage("msg-1", documentJSON("dev-1",
		[]map[string]interface{}{process("a", "u"), process("b", "u")},
		[]map[string]interface{}{connection("1.1.1.1", "2.2.2.2", 53)},
	))

	first := svc.HandleBatch(context.Background(), TriggerCLI, []models.InboundMessage{msg})
	require.Equal(t, []string{"msg-1"}, first.RetryIDs())
	firstIDs := recordKeys(w.Calls())

	failing = false
	second := svc.HandleBatch(context.Background(), TriggerCLI, []models.InboundMessage{msg})
	require.Empty(t, second.Retry)

	calls := w.Calls()
	require.Len(t, calls, 2)
	last := calls[1]
	require.Len(t, last.records, 3)

	var types []models.EventType
	for _, rec := range last.records {
		var ev models.CanonicalEvent
		require.NoError(t, json.Unmarshal(rec.Data, &ev))
		types = append(types, ev.Type)
		assert.NotContains(t, firstIDs, ev.EventID)
	}
	assert.Equal(t, []models.EventType{
		models.EventTypeNewProcess,
		models.EventTypeNewProcess,
		models.EventTypeNetworkConnection,
	}, types)
}

func TestService_MixedBatch(t *testing.T) {
	w := &fakeWriter{fail: failDevice("dev-3")}
	svc := newTestService(t, w)

	outcome := svc.HandleBatch(context.Background(), TriggerHTTP, []models.InboundMessage{
		jsonMessage("m1", documentJSON("dev-1", []map[string]interface{}{process("a", "u")}, nil)),
		jsonMessage("m2", "garbage"),
		jsonMessage("m3", documentJSON("dev-3", []map[string]interface{}{process("a", "u")}, nil)),
		jsonMessage("m4", documentJSON("dev-4", nil, nil)),
		jsonMessage("m5", documentJSON("dev-5", nil, []map[string]interface{}{connection("a", "b", 1)})),
	})

	assert.Equal(t, []string{"m3"}, outcome.RetryIDs())
	assert.Len(t, w.Calls(), 3)
}

func TestNewService_RejectsUnknownEncoding(t *testing.T) {
	log, _ := newTestLogger()
	_, err := NewService(config.PipelineConfig{DefaultEncoding: "zip"}, "events", &fakeWriter{}, log)
	require.Error(t, err)
}

func mustDetails(t *testing.T, data []byte) []byte {
	t.Helper()
	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	return wire["details"]
}

func recordKeys(calls []putCall) []string {
	var keys []string
	for _, c := range calls {
		for _, rec := range c.records {
			keys = append(keys, rec.PartitionKey)
		}
	}
	return keys
}
