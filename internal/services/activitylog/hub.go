package activitylog

import (
	"context"
	"sync"

	"github.com/louisbranch/storefront/internal/platform/events"
)

const subscriberBuffer = 16

// Hub fans freshly recorded activities out to live stream consumers. A
// consumer that stops draining its channel is disconnected instead of
// holding up the event bus.
type Hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[chan events.ActivityLoggedEvent]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		buffer: subscriberBuffer,
		subs:   make(map[chan events.ActivityLoggedEvent]struct{}),
	}
}

// SetBufferSize adjusts how many events a consumer may lag before it is
// disconnected. Applies to new subscriptions; non-positive sizes are ignored.
func (h *Hub) SetBufferSize(size int) {
	if h == nil || size <= 0 {
		return
	}
	h.mu.Lock()
	h.buffer = size
	h.mu.Unlock()
}

// Subscribe registers a live stream consumer. The channel closes when the
// consumer is cancelled or falls too far behind; cancel is safe to call more
// than once.
func (h *Hub) Subscribe() (<-chan events.ActivityLoggedEvent, func()) {
	h.mu.Lock()
	ch := make(chan events.ActivityLoggedEvent, h.buffer)
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// HandleEvent adapts the hub to an event bus subscriber. Non-activity
// payloads are ignored.
func (h *Hub) HandleEvent(_ context.Context, event events.Event) error {
	entry, ok := event.Payload.(events.ActivityLoggedEvent)
	if !ok {
		return nil
	}
	h.broadcast(entry)
	return nil
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(entry events.ActivityLoggedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- entry:
		default:
			// The consumer stopped draining. Disconnect it.
			delete(h.subs, ch)
			close(ch)
		}
	}
}
