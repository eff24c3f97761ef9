// Package bus provides the in-process publish/subscribe channel the sync
// engine and print queue use to notify observers of state changes.
package bus

import "sync"

// Event names published by the core.
const (
	OrdersChanged = "orders:changed"
	SyncStart     = "sync:start"
	SyncSuccess   = "sync:success"
	SyncError     = "sync:error"
	OutboxQueued  = "outbox:queued"
	PrintDone     = "print:done"
	PrintError    = "print:error"
)

// Handler receives the optional payload published with an event.
type Handler func(payload any)

// Bus is an observer registry keyed by event name. Each Bus instance owns
// its own subscriber state, so independent engines never interfere.
//
// Thread-safety: all methods are safe for concurrent use. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers fn for the named event and returns an unsubscribe
// handle. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(event string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
	}
}

// Publish delivers payload to every subscriber of the named event.
// Publishing with no subscribers is a no-op.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.handlers[event]))
	for id := range b.handlers[event] {
		ids = append(ids, id)
	}
	// Stable delivery order: subscription order.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.handlers[event][id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}
