package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Bus is the in-process publish/subscribe hub for system events.
// Handlers run synchronously on the emitting goroutine, so they must
// return quickly; slow consumers buffer internally and drop on overflow.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]func(*Event)
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]func(*Event)),
		log:      log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for the given event type. Handlers are
// never removed; long-lived subscribers guard themselves when their
// consumer goes away.
func (b *Bus) Subscribe(eventType EventType, handler func(*Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit builds an event and delivers it to every handler subscribed to
// its type, in subscription order.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]func(*Event), len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}

	b.log.Debug().
		Str("event_type", string(eventType)).
		Int("handlers", len(handlers)).
		Msg("Event dispatched")
}
