// Package eventbus provides an in-process publish/subscribe dispatcher for
// domain events. Handlers are registered per event name; publication is
// synchronous and handler errors are logged, not propagated, so one slow or
// broken consumer cannot fail the publishing command.
package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/careward/careward/internal/effect"
)

// Handler consumes a published event.
type Handler func(ctx context.Context, ev effect.Event) error

// Bus dispatches events to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Bus {
	return &Bus{handlers: make(map[string][]Handler), log: log}
}

// Subscribe registers a handler for the given event name. The wildcard "*"
// subscribes to every event.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish delivers the event to all matching handlers in registration order.
func (b *Bus) Publish(ctx context.Context, ev effect.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	handlers := append(append([]Handler(nil), b.handlers[ev.EventName()]...), b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			b.log.Error().Err(err).Str("event", ev.EventName()).Msg("event handler failed")
		}
	}
	return nil
}

// Close stops the bus; subsequent publishes fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
