package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process EventBus. It dispatches synchronously from the
// publisher's goroutine, so delivery order matches publish order — the hub
// relies on that for its per-conversation ordering guarantee. It also backs
// single-node deployments and tests.
type MemoryBus struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[EventType][]EventHandler)}
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		// Best-effort: one failing subscriber never blocks the rest.
		_ = h.Handle(ctx, event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
