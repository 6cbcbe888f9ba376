package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// Subscriber consumes committed events. Subscribers must tolerate
// at-least-once delivery; the projector and reactors both carry their own
// idempotency guards.
type Subscriber interface {
	Name() string
	OnEvent(ctx context.Context, event domain.Event) error
}

// Bus is the in-process publish-on-commit fan-out. Subscribers are invoked
// in registration order so the projector sees an event before the reactors
// that read its projection.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber. Registration order is delivery order.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers one committed event to every subscriber. A subscriber
// error is logged and does not stop delivery to the rest: the event is
// already durable, and each subscriber owns its own recovery path (projector
// catch-up, reactor retry).
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	logger := middleware.GetLoggerFromCtx(ctx)
	for _, s := range subs {
		if err := s.OnEvent(ctx, event); err != nil {
			logger.Error("Event subscriber failed",
				slog.String("subscriber", s.Name()),
				slog.String("event_id", event.EventID),
				slog.String("event_type", string(event.EventType)),
				slog.String("error", err.Error()),
			)
		}
	}
}
