// Package event provides the in-memory pub/sub bus that decouples the
// dashboard coordinator from whatever presentation layer consumes snapshots.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one published occurrence, e.g. a fresh dashboard snapshot.
type Event struct {
	Topic   string
	Time    time.Time
	Payload any
}

// Handler consumes events. Handlers must not mutate the payload.
type Handler func(ctx context.Context, ev Event)

// Bus is an in-memory event bus. Publish is synchronous (handlers run in the
// caller's goroutine); PublishAsync dispatches each handler in its own.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   uint64
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler Handler
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Subscribe registers a handler for a topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Publish dispatches ev synchronously to every handler subscribed to its topic.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	for _, h := range b.snapshot(ev.Topic) {
		b.safeCall(ctx, h.handler, ev)
	}
}

// PublishAsync dispatches ev to each subscribed handler in its own goroutine.
func (b *Bus) PublishAsync(ctx context.Context, ev Event) {
	for _, h := range b.snapshot(ev.Topic) {
		go b.safeCall(ctx, h.handler, ev)
	}
}

func (b *Bus) snapshot(topic string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]handlerEntry, len(b.handlers[topic]))
	copy(out, b.handlers[topic])
	return out
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", ev.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, ev)
}
