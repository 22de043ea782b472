package eventsourcing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConcurrencyConflict = errors.New("eventsourcing: concurrency conflict")
	ErrUnknownEventType    = errors.New("eventsourcing: unknown event type")
)

// Store persists an ordered log of events per aggregate.
// Append must fail with ErrConcurrencyConflict when the stream is not at expectedVersion.
type Store interface {
	Load(ctx context.Context, aggregateType string, id uuid.UUID) ([]Envelope, error)
	Append(ctx context.Context, aggregateType string, id uuid.UUID, expectedVersion int, events []Event) ([]Envelope, error)
}

// MemoryStore is a Store kept in process memory. Used by tests and the memory deployment profile.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]Envelope
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]Envelope),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func streamKey(aggregateType string, id uuid.UUID) string {
	return aggregateType + "/" + id.String()
}

func (s *MemoryStore) Load(_ context.Context, aggregateType string, id uuid.UUID) ([]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream := s.streams[streamKey(aggregateType, id)]
	out := make([]Envelope, len(stream))
	copy(out, stream)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, aggregateType string, id uuid.UUID, expectedVersion int, events []Event) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey(aggregateType, id)
	stream := s.streams[key]
	if len(stream) != expectedVersion {
		return nil, ErrConcurrencyConflict
	}

	now := s.now()
	appended := make([]Envelope, 0, len(events))
	for i, e := range events {
		appended = append(appended, Envelope{
			AggregateType: aggregateType,
			AggregateID:   id,
			Version:       expectedVersion + i + 1,
			Event:         e,
			RecordedAt:    now,
		})
	}
	s.streams[key] = append(stream, appended...)
	return appended, nil
}

// Events returns the raw events of one stream, in order.
func (s *MemoryStore) Events(aggregateType string, id uuid.UUID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream := s.streams[streamKey(aggregateType, id)]
	out := make([]Event, 0, len(stream))
	for _, env := range stream {
		out = append(out, env.Event)
	}
	return out
}
