package relay

import (
	"encoding/json"
	"sort"

	"relay/pkg/models"
)

// Document is a decoded message body.
type Document struct {
	DeviceID string `json:"device_id"`
	Events   Events `json:"events"`
}

type Events struct {
	NewProcess        []SubEvent `json:"new_process"`
	NetworkConnection []SubEvent `json:"network_connection"`
}

// SubEvent keeps every attribute as its raw JSON token so values can be
// copied verbatim into the canonical event.
type SubEvent map[string]json.RawMessage

func (s SubEvent) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}

func (s SubEvent) keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MessageGroup is every canonical event derived from one inbound message.
// It only exists for messages that decoded and mapped completely and is
// never modified after construction.
type MessageGroup struct {
	messageID string
	events    []models.CanonicalEvent
}

func NewMessageGroup(messageID string, events []models.CanonicalEvent) MessageGroup {
	owned := make([]models.CanonicalEvent, len(events))
	copy(owned, events)
	return MessageGroup{messageID: messageID, events: owned}
}

func (g MessageGroup) MessageID() string {
	return g.messageID
}

func (g MessageGroup) Len() int {
	return len(g.events)
}

// Events returns a copy of the group's events in publication order.
func (g MessageGroup) Events() []models.CanonicalEvent {
	out := make([]models.CanonicalEvent, len(g.events))
	copy(out, g.events)
	return out
}

// ProcessingFailure records a message dropped by the processor.
type ProcessingFailure struct {
	MessageID string
	Err       error
}
