package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventTypeNewProcess        EventType = "new_process"
	EventTypeNetworkConnection EventType = "network_connection"
)

// EventDetails is the closed set of per-type payloads. Only the types in
// this package implement it.
type EventDetails interface {
	EventType() EventType
	isEventDetails()
}

// Detail values are kept as the raw JSON tokens of the source sub-event.
// MarshalEvent republishes scalar tokens byte-for-byte.
type NewProcessDetails struct {
	Cmdl json.RawMessage `json:"cmdl"`
	User json.RawMessage `json:"user"`
}

func (NewProcessDetails) EventType() EventType { return EventTypeNewProcess }
func (NewProcessDetails) isEventDetails()      {}

type NetworkConnectionDetails struct {
	SourceIP        json.RawMessage `json:"source_ip"`
	DestinationIP   json.RawMessage `json:"destination_ip"`
	DestinationPort json.RawMessage `json:"destination_port"`
}

func (NetworkConnectionDetails) EventType() EventType { return EventTypeNetworkConnection }
func (NetworkConnectionDetails) isEventDetails()      {}

// CanonicalEvent is the normalized record published to the outbound stream.
type CanonicalEvent struct {
	EventID       string       `json:"event_id"`
	DeviceID      string       `json:"device_id"`
	TimeProcessed time.Time    `json:"time_processed"`
	Type          EventType    `json:"type"`
	Details       EventDetails `json:"details"`
}

// MarshalEvent encodes e with HTML escaping off, so '&', '<', '>' and
// U+2028/U+2029 inside detail tokens are written as received.
func MarshalEvent(e CanonicalEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type canonicalEventWire struct {
	EventID       string          `json:"event_id"`
	DeviceID      string          `json:"device_id"`
	TimeProcessed time.Time       `json:"time_processed"`
	Type          EventType       `json:"type"`
	Details       json.RawMessage `json:"details"`
}

func (e *CanonicalEvent) UnmarshalJSON(data []byte) error {
	var wire canonicalEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var details EventDetails
	switch wire.Type {
	case EventTypeNewProcess:
		var d NewProcessDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("invalid new_process details: %w", err)
		}
		details = d
	case EventTypeNetworkConnection:
		var d NetworkConnectionDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("invalid network_connection details: %w", err)
		}
		details = d
	default:
		return fmt.Errorf("unknown event type %q", wire.Type)
	}

	*e = CanonicalEvent{
		EventID:       wire.EventID,
		DeviceID:      wire.DeviceID,
		TimeProcessed: wire.TimeProcessed,
		Type:          wire.Type,
		Details:       details,
	}
	return nil
}
