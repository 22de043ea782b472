// Package deadline is the contract between aggregates and the durable timer
// service: schedule a named payload for a wall-clock instant, cancel it by
// handle, and have it delivered back as a command at least once.
package deadline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownDeadline = errors.New("deadline: no handler registered")

// OrphanGrace is how long after its due time a deadline may keep finding no
// target aggregate before handlers give up on it. Schedule runs before the
// aggregate's first append, so an early delivery must be retried, while a timer
// whose append failed (and whose cancel failed too) must eventually stop.
const OrphanGrace = time.Hour

// Orphaned reports whether a deadline due at dueAt that still has no target at
// now should be dropped.
func Orphaned(dueAt, now time.Time) bool {
	return !dueAt.IsZero() && now.After(dueAt.Add(OrphanGrace))
}

// Handle identifies one scheduled deadline. It is opaque to callers.
type Handle string

// Scheduler schedules and cancels deadlines. Cancelling an unknown or already
// fired handle is not an error: delivery may already be in flight and the
// receiving aggregate is expected to guard against it.
type Scheduler interface {
	Schedule(ctx context.Context, fireAt time.Time, name string, payload any) (Handle, error)
	Cancel(ctx context.Context, name string, handle Handle) error
}

// Handler receives the JSON payload of a fired deadline.
type Handler func(ctx context.Context, payload []byte) error

// Typed adapts a handler of a concrete payload type.
func Typed[P any](fn func(ctx context.Context, payload P) error) Handler {
	return func(ctx context.Context, raw []byte) error {
		var p P
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode deadline payload: %w", err)
		}
		return fn(ctx, p)
	}
}

// Dispatcher routes fired deadlines to their handler by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload []byte) error {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDeadline, name)
	}
	return h(ctx, payload)
}
