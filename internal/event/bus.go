// Package event implements the in-process bus behind plugin.EventBus.
package event

import (
	"context"
	"sync"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// Bus routes events to topic and wildcard subscribers. Publish runs handlers
// on the calling goroutine; PublishAsync runs each handler on its own.
// Delivery order across subscribers is unspecified. A panicking handler is
// logged and never takes the publisher down with it.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	nextID   uint64
	topics   map[string]map[uint64]plugin.EventHandler
	wildcard map[uint64]plugin.EventHandler
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:   logger,
		topics:   make(map[string]map[uint64]plugin.EventHandler),
		wildcard: make(map[uint64]plugin.EventHandler),
	}
}

// Subscribe registers handler for one topic and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]plugin.EventHandler)
	}
	id := b.nextID
	b.nextID++
	b.topics[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.topics[topic], id)
	}
}

// SubscribeAll registers handler for every topic and returns its unsubscribe
// function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.wildcard[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.wildcard, id)
	}
}

// Publish delivers event to every matching handler before returning.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, h := range b.matching(event.Topic) {
		b.invoke(ctx, h, event)
	}
	return nil
}

// PublishAsync delivers event without waiting for handlers.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	for _, h := range b.matching(event.Topic) {
		go b.invoke(ctx, h, event)
	}
}

// matching snapshots the handlers for a topic plus the wildcard set, so
// handlers registered or removed mid-publish never mutate a live iteration.
func (b *Bus) matching(topic string) []plugin.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]plugin.EventHandler, 0, len(b.topics[topic])+len(b.wildcard))
	for _, h := range b.topics[topic] {
		out = append(out, h)
	}
	for _, h := range b.wildcard {
		out = append(out, h)
	}
	return out
}

func (b *Bus) invoke(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.Any("panic", r),
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
			)
		}
	}()
	handler(ctx, event)
}
