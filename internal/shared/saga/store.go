// Package saga persists long-running process managers keyed by a correlation
// id and serializes the events delivered to each instance.
package saga

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSagaNotFound        = errors.New("saga: instance not found")
	ErrConcurrencyConflict = errors.New("saga: concurrency conflict")
)

// Store keeps the serialized state of saga instances. Versions start at 1;
// Save with expectedVersion 0 creates the instance.
type Store interface {
	Load(ctx context.Context, sagaType, correlationID string) (state []byte, version int, err error)
	Save(ctx context.Context, sagaType, correlationID string, expectedVersion int, state []byte) error
	Delete(ctx context.Context, sagaType, correlationID string) error
}

type memoryRecord struct {
	version int
	state   []byte
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func memoryKey(sagaType, correlationID string) string {
	return sagaType + "/" + correlationID
}

func (s *MemoryStore) Load(_ context.Context, sagaType, correlationID string) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[memoryKey(sagaType, correlationID)]
	if !ok {
		return nil, 0, ErrSagaNotFound
	}
	return append([]byte(nil), rec.state...), rec.version, nil
}

func (s *MemoryStore) Save(_ context.Context, sagaType, correlationID string, expectedVersion int, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(sagaType, correlationID)
	rec, ok := s.records[key]
	current := 0
	if ok {
		current = rec.version
	}
	if current != expectedVersion {
		return ErrConcurrencyConflict
	}
	s.records[key] = memoryRecord{version: expectedVersion + 1, state: append([]byte(nil), state...)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sagaType, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, memoryKey(sagaType, correlationID))
	return nil
}

// Len reports how many instances are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
