package events

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Handler processes one event. Returned errors are logged by the bus and do
// not interrupt delivery to other subscribers.
type Handler func(ctx context.Context, event Event) error

type subscription struct {
	pattern string
	name    string
	handler Handler
}

// Subscription is a declared subscription, used by modules that hand their
// subscriptions to the engine instead of calling Subscribe themselves.
type Subscription struct {
	Pattern string
	Name    string
	Handler Handler
}

// Bus delivers events synchronously to subscribers in registration order.
//
// Publishing never fails from the caller's point of view: a subscriber that
// returns an error or panics is logged and skipped, and delivery continues.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription

	now func() time.Time
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers handler under name for events matching pattern.
//
// A pattern ending in "." matches every type with that prefix (for example
// "country." matches country.created). The pattern "*" matches every event.
// Any other pattern matches the event type exactly. Blank patterns and nil
// handlers are ignored.
func (b *Bus) Subscribe(pattern string, name string, handler Handler) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || handler == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, subscription{pattern: pattern, name: name, handler: handler})
	b.mu.Unlock()
}

// Publish wraps payload in an Event and delivers it to every matching
// subscriber before returning.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	if b == nil {
		return
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return
	}
	event := Event{
		Type:       eventType,
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !matches(sub.pattern, eventType) {
			continue
		}
		b.deliver(ctx, sub, event)
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: subscriber %s panicked on %s: %v", sub.name, event.Type, r)
		}
	}()
	if err := sub.handler(ctx, event); err != nil {
		log.Printf("events: subscriber %s failed on %s: %v", sub.name, event.Type, err)
	}
}

func matches(pattern string, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".") {
		return strings.HasPrefix(eventType, pattern)
	}
	return pattern == eventType
}
