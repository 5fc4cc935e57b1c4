package event

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/devicecenter/backend/internal/domain/shared"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Envelope is the wire form of a dispatched event. Payload holds the full
// event as JSON; the other fields let consumers route without decoding it.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSerializer encodes events into envelopes and decodes them back into
// the registered Go types
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register maps eventType to the concrete type of eventInstance
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize encodes event as an envelope
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
	}
	return json.Marshal(Envelope{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		TenantID:      event.TenantID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	})
}

// Deserialize decodes an envelope into the event type registered for it
func (s *EventSerializer) Deserialize(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", env.EventType, err)
	}
	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type for %s does not implement DomainEvent", env.EventType)
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
