// Package events routes infrastructure notifications from the listeners
// to the collectors that subscribed to them.
package events

import (
	"context"
	"log"
	"sync"

	"github.com/open-landscape/landscaper/internal/metrics"
)

// Event is a single infrastructure notification, e.g. an OpenStack
// "compute.instance.create.end" message. Payload carries the decoded
// message body, Timestamp the epoch second the change happened.
type Event struct {
	Type      string
	Payload   map[string]any
	Timestamp int64
}

// Handler applies one event to the landscape.
type Handler func(ctx context.Context, event Event) error

// Manager keeps the subscription table. Listeners dispatch into it,
// collectors subscribe to the event types they understand.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	debug    bool
}

// NewManager creates an empty event manager.
func NewManager(debug bool) *Manager {
	return &Manager{
		handlers: make(map[string][]Handler),
		debug:    debug,
	}
}

// Subscribe registers a handler for a set of event types.
func (m *Manager) Subscribe(handler Handler, eventTypes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range eventTypes {
		m.handlers[t] = append(m.handlers[t], handler)
	}
}

// Subscribed reports whether any handler listens for the event type.
func (m *Manager) Subscribed(eventType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[eventType]) > 0
}

// Dispatch hands an event to every subscribed handler. Handler failures
// are logged and counted but do not stop delivery to the others; a lost
// event only delays the landscape until the next full collection.
func (m *Manager) Dispatch(ctx context.Context, event Event) {
	m.mu.RLock()
	handlers := m.handlers[event.Type]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		if m.debug {
			log.Printf("No handler for event %s, dropping", event.Type)
		}
		return
	}

	metrics.EventsProcessed.WithLabelValues(event.Type).Inc()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			metrics.EventErrors.WithLabelValues(event.Type).Inc()
			log.Printf("Failed to handle event %s: %v", event.Type, err)
		}
	}
}
