package deadline

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const defaultRetryDelay = 30 * time.Second

// MemoryScheduler keeps deadlines in process memory and fires them from FireDue.
// It is not durable; use it for tests and single-process development.
type MemoryScheduler struct {
	mu         sync.Mutex
	entries    map[Handle]*memoryEntry
	dispatcher *Dispatcher
	clock      clock.Clock
	retryDelay time.Duration
}

type memoryEntry struct {
	name     string
	payload  []byte
	fireAt   time.Time
	attempts int
}

func NewMemoryScheduler(dispatcher *Dispatcher, c clock.Clock) *MemoryScheduler {
	return &MemoryScheduler{
		entries:    make(map[Handle]*memoryEntry),
		dispatcher: dispatcher,
		clock:      c,
		retryDelay: defaultRetryDelay,
	}
}

func (s *MemoryScheduler) Schedule(_ context.Context, fireAt time.Time, name string, payload any) (Handle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	h := Handle(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[h] = &memoryEntry{name: name, payload: raw, fireAt: fireAt}
	return h, nil
}

func (s *MemoryScheduler) Cancel(_ context.Context, name string, handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[handle]; ok && e.name == name {
		delete(s.entries, handle)
	}
	return nil
}

// FireDue dispatches every deadline due at now, oldest first, and returns how many were delivered.
// A failed delivery is kept and retried after the retry delay.
func (s *MemoryScheduler) FireDue(ctx context.Context, now time.Time) int {
	type due struct {
		handle Handle
		entry  *memoryEntry
	}

	s.mu.Lock()
	var batch []due
	for h, e := range s.entries {
		if !e.fireAt.After(now) {
			batch = append(batch, due{handle: h, entry: e})
			delete(s.entries, h)
		}
	}
	s.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].entry.fireAt.Before(batch[j].entry.fireAt) })

	fired := 0
	for _, d := range batch {
		if err := s.dispatcher.Dispatch(ctx, d.entry.name, d.entry.payload); err != nil {
			d.entry.attempts++
			d.entry.fireAt = now.Add(s.retryDelay)
			log.Error("Deadline delivery failed, will retry",
				zap.String("deadline", d.entry.name),
				zap.String("handle", string(d.handle)),
				zap.Int("attempts", d.entry.attempts),
				zap.Error(err),
			)
			s.mu.Lock()
			s.entries[d.handle] = d.entry
			s.mu.Unlock()
			continue
		}
		fired++
	}
	return fired
}

// Run fires due deadlines every interval until ctx is done.
func (s *MemoryScheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FireDue(ctx, s.clock.Now())
		}
	}
}

// Pending reports the number of deadlines not yet delivered.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
