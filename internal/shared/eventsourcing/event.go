package eventsourcing

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact appended to an aggregate log.
// EventType must be stable: it is persisted and used to decode payloads on replay.
type Event interface {
	EventType() string
}

// Envelope is an Event as stored: positioned in its aggregate stream.
type Envelope struct {
	AggregateType string
	AggregateID   uuid.UUID
	Version       int
	Event         Event
	RecordedAt    time.Time
}

// Aggregate is state derived by folding events in order.
type Aggregate interface {
	Apply(e Event)
}

// Registry maps event type names to decoders so stored payloads can be replayed.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]func(raw []byte) (Event, error)
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]func(raw []byte) (Event, error))}
}

// Register adds E to r. E must be a value type whose EventType works on the zero value.
func Register[E Event](r *Registry) {
	var zero E
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[zero.EventType()] = func(raw []byte) (Event, error) {
		var e E
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Decode turns a stored payload back into its concrete event.
func (r *Registry) Decode(eventType string, raw []byte) (Event, error) {
	r.mu.RLock()
	dec, ok := r.decoders[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	e, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return e, nil
}

type wireEnvelope struct {
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Version       int             `json:"version"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// MarshalEnvelope encodes env for transport between processes.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		Version:       env.Version,
		EventType:     env.Event.EventType(),
		Payload:       payload,
		RecordedAt:    env.RecordedAt,
	})
}

// UnmarshalEnvelope is the inverse of MarshalEnvelope.
func (r *Registry) UnmarshalEnvelope(raw []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, err
	}
	e, err := r.Decode(w.EventType, w.Payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		AggregateType: w.AggregateType,
		AggregateID:   w.AggregateID,
		Version:       w.Version,
		Event:         e,
		RecordedAt:    w.RecordedAt,
	}, nil
}
