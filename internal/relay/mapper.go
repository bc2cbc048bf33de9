package relay

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"relay/pkg/models"
)

// IDGenerator returns a new event identifier. Identifiers must be unique
// across invocations and process restarts.
type IDGenerator func() (string, error)

type MapperOption func(*Mapper)

func WithIDGenerator(gen IDGenerator) MapperOption {
	return func(m *Mapper) {
		m.newID = gen
	}
}

func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) {
		m.now = now
	}
}

// Mapper converts sub-events into canonical events.
type Mapper struct {
	newID IDGenerator
	now   func() time.Time
}

func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		newID: newEventID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map classifies sub by its attributes, not by the collection it came from.
// A sub-event with both shapes is a new_process event.
func (m *Mapper) Map(deviceID string, sub SubEvent) (models.CanonicalEvent, error) {
	details, err := classify(sub)
	if err != nil {
		return models.CanonicalEvent{}, err
	}

	id, err := m.newID()
	if err != nil {
		return models.CanonicalEvent{}, fmt.Errorf("failed to generate event id: %w", err)
	}

	return models.CanonicalEvent{
		EventID:       id,
		DeviceID:      deviceID,
		TimeProcessed: m.now().UTC(),
		Type:          details.EventType(),
		Details:       details,
	}, nil
}

func classify(sub SubEvent) (models.EventDetails, error) {
	switch {
	case sub.has("cmdl", "user"):
		return models.NewProcessDetails{
			Cmdl: sub["cmdl"],
			User: sub["user"],
		}, nil
	case sub.has("source_ip", "destination_ip", "destination_port"):
		return models.NetworkConnectionDetails{
			SourceIP:        sub["source_ip"],
			DestinationIP:   sub["destination_ip"],
			DestinationPort: sub["destination_port"],
		}, nil
	default:
		return nil, &UnknownEventTypeError{Keys: sub.keys()}
	}
}

func newEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
