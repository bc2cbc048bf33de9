package models

import "encoding/json"

// InboundMessage is one queued message of a batch. Body is opaque to the
// caller; Encoding optionally names how it is wrapped ("json" or "base64").
type InboundMessage struct {
	MessageID string
	Body      []byte
	Encoding  string
}

type inboundMessageWire struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
	Encoding  string `json:"encoding,omitempty"`
}

// Bodies travel as text on the wire, not as base64-encoded []byte.
func (m InboundMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(inboundMessageWire{
		MessageID: m.MessageID,
		Body:      string(m.Body),
		Encoding:  m.Encoding,
	})
}

func (m *InboundMessage) UnmarshalJSON(data []byte) error {
	var wire inboundMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.MessageID = wire.MessageID
	m.Body = []byte(wire.Body)
	m.Encoding = wire.Encoding
	return nil
}

type BatchRequest struct {
	Messages []InboundMessage `json:"messages"`
}

type RetryItem struct {
	MessageID string `json:"message_id"`
}

// BatchOutcome lists, in input order, the messages that must be retried.
// A message absent from Retry was fully handled.
type BatchOutcome struct {
	Retry []RetryItem `json:"retry"`
}

func NewBatchOutcome() BatchOutcome {
	return BatchOutcome{Retry: make([]RetryItem, 0)}
}

func (o *BatchOutcome) AddRetry(messageID string) {
	o.Retry = append(o.Retry, RetryItem{MessageID: messageID})
}

func (o BatchOutcome) RetryIDs() []string {
	ids := make([]string, len(o.Retry))
	for i, item := range o.Retry {
		ids[i] = item.MessageID
	}
	return ids
}
