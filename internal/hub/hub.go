// Package hub fans out domain events to live subscribers.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mvdveer/fediviz/internal/domain"
)

// subscriberBuffer absorbs short bursts; a subscriber that falls further
// behind starts losing events rather than blocking the publisher.
const subscriberBuffer = 64

// Hub is the broadcast fan-out point. Adding or removing a subscription
// grabs the write lock; publishing grabs the read lock, so registration is
// safe concurrently with delivery.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]chan domain.Event
}

// Subscription is one viewer's event channel. Close it to stop delivery.
type Subscription struct {
	hub *Hub
	id  string

	// C receives every published event in publish order, best effort.
	C <-chan domain.Event
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]chan domain.Event),
	}
}

// Subscribe registers a new subscriber channel.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan domain.Event, subscriberBuffer)
	id := uuid.New().String()

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return &Subscription{hub: h, id: id, C: ch}
}

// Close deregisters the subscription. Events already buffered remain
// readable; no further events are delivered. Close is safe to call more
// than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if ch, ok := s.hub.subs[s.id]; ok {
		delete(s.hub.subs, s.id)
		close(ch)
	}
}

// Publish delivers the event to every current subscriber. Delivery is
// best-effort: a subscriber with a full buffer is skipped.
func (h *Hub) Publish(event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
