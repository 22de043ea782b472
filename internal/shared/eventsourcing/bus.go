package eventsourcing

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a committed event. Errors are logged by the Bus, the
// handler's own retry policy lives with the handler.
type Handler func(ctx context.Context, env Envelope) error

// Bus delivers envelopes to the handlers subscribed to their event type.
// Delivery is synchronous and in publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]namedHandler)}
}

// Subscribe registers fn under name for every eventType given.
func (b *Bus) Subscribe(name string, fn Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], namedHandler{name: name, fn: fn})
	}
}

func (b *Bus) Publish(ctx context.Context, envs ...Envelope) {
	for _, env := range envs {
		b.mu.RLock()
		subs := append([]namedHandler(nil), b.handlers[env.Event.EventType()]...)
		b.mu.RUnlock()

		for _, h := range subs {
			if err := h.fn(ctx, env); err != nil {
				log.Error("Event handler failed",
					zap.String("handler", h.name),
					zap.String("eventType", env.Event.EventType()),
					zap.String("aggregateID", env.AggregateID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// FanOut publishes to every publisher in order.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, envs ...Envelope) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, envs...)
		}
	}
}
