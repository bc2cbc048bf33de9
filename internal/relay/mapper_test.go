package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/pkg/models"
)

func subEvent(t *testing.T, raw string) SubEvent {
	t.Helper()
	var sub SubEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &sub))
	return sub
}

func TestMapper_Classification(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType models.EventType
		wantErr  bool
	}{
		{name: "process", raw: `{"cmdl":"ls -la","user":"root"}`, wantType: models.EventTypeNewProcess},
		{name: "connection", raw: `{"source_ip":"10.0.0.1","destination_ip":"10.0.0.2","destination_port":443}`, wantType: models.EventTypeNetworkConnection},
		{name: "both shapes prefer process", raw: `{"cmdl":"x","user":"u","source_ip":"a","destination_ip":"b","destination_port":1}`, wantType: models.EventTypeNewProcess},
		{name: "extra attributes are ignored", raw: `{"cmdl":"x","user":"u","pid":12}`, wantType: models.EventTypeNewProcess},
		{name: "null values still match", raw: `{"cmdl":null,"user":null}`, wantType: models.EventTypeNewProcess},
		{name: "process missing user", raw: `{"cmdl":"ls"}`, wantErr: true},
		{name: "connection missing port", raw: `{"source_ip":"a","destination_ip":"b"}`, wantErr: true},
		{name: "source ip only", raw: `{"source_ip":"a"}`, wantErr: true},
		{name: "empty", raw: `{}`, wantErr: true},
	}

	m := NewMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := m.Map("dev-1", subEvent(t, tt.raw))
			if tt.wantErr {
				var unknown *UnknownEventTypeError
				require.ErrorAs(t, err, &unknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.wantType, ev.Details.EventType())
			assert.Equal(t, "dev-1", ev.DeviceID)
			assert.NotEmpty(t, ev.EventID)
		})
	}
}

func TestMapper_UsesInjectedGeneratorAndClock(t *testing.T) {
	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3*3600))
	m := NewMapper(
		WithIDGenerator(func() (string, error) { return "evt-1", nil }),
		WithClock(func() time.Time { return local }),
	)

	ev, err := m.Map("dev-1", subEvent(t, `{"cmdl":"ls","user":"root"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.EventID)
	assert.Equal(t, time.UTC, ev.TimeProcessed.Location())
	assert.True(t, ev.TimeProcessed.Equal(local))
}

func TestMapper_GeneratorFailure(t *testing.T) {
	m := NewMapper(WithIDGenerator(func() (string, error) { return "", errors.New("entropy exhausted") }))

	_, err := m.Map("dev-1", subEvent(t, `{"cmdl":"ls","user":"root"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestMapper_DetailsAreCopiedVerbatim(t *testing.T) {
	m := NewMapper()

	ev, err := m.Map("dev-1", subEvent(t, `{"source_ip":"10.0.0.1","destination_ip":"10.0.0.2","destination_port":443.0,"ttl":3}`))
	require.NoError(t, err)

	details, ok := ev.Details.(models.NetworkConnectionDetails)
	require.True(t, ok)
	assert.Equal(t, `"10.0.0.1"`, string(details.SourceIP))
	assert.Equal(t, `"10.0.0.2"`, string(details.DestinationIP))
	assert.Equal(t, `443.0`, string(details.DestinationPort))

	out, err := models.MarshalEvent(ev)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &wire))
	assert.Equal(t, `{"source_ip":"10.0.0.1","destination_ip":"10.0.0.2","destination_port":443.0}`, string(wire["details"]))
	assert.Equal(t, `"network_connection"`, string(wire["type"]))
}

func TestMapper_ShellMetacharactersAreNotEscaped(t *testing.T) {
	m := NewMapper()

	ev, err := m.Map("dev-1", subEvent(t, `{"cmdl":"a && b <c> \u2028","user":"root"}`))
	require.NoError(t, err)

	out, err := models.MarshalEvent(ev)
	require.NoError(t, err)
	assert.False(t, bytes.HasSuffix(out, []byte("\n")))

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &wire))
	assert.Equal(t, `{"cmdl":"a && b <c> \u2028","user":"root"}`, string(wire["details"]))
}

func TestMapper_NestedValuesRoundTrip(t *testing.T) {
	m := NewMapper()

	ev, err := m.Map("dev-1", subEvent(t, `{"cmdl":["ls","-la"],"user":{"name":"root","uid":0}}`))
	require.NoError(t, err)

	details := ev.Details.(models.NewProcessDetails)
	assert.Equal(t, `["ls","-la"]`, string(details.Cmdl))
	assert.Equal(t, `{"name":"root","uid":0}`, string(details.User))
}

func TestMapper_DefaultIDsAreUnique(t *testing.T) {
	m := NewMapper()
	sub := subEvent(t, `{"cmdl":"ls","user":"root"}`)

	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		ev, err := m.Map("dev-1", sub)
		require.NoError(t, err)
		_, dup := seen[ev.EventID]
		require.False(t, dup, "duplicate event id %s", ev.EventID)
		seen[ev.EventID] = struct{}{}
	}
}

func TestCanonicalEvent_JSONRoundTrip(t *testing.T) {
	m := NewMapper()
	ev, err := m.Map("dev-1", subEvent(t, `{"cmdl":"ls -la","user":"root"}`))
	require.NoError(t, err)

	out, err := models.MarshalEvent(ev)
	require.NoError(t, err)

	var back models.CanonicalEvent
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, ev.EventID, back.EventID)
	assert.True(t, ev.TimeProcessed.Equal(back.TimeProcessed))
	assert.Equal(t, ev.Details, back.Details)
}
