package invalidation

import (
	"context"
	"sync"
	"time"

	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
)

// Message announces that every cache entry under one of Keys is stale.
type Message struct {
	ID     string           `json:"id"`
	Source string           `json:"source"`
	Keys   []querycache.Key `json:"keys"`
	SentAt time.Time        `json:"sent_at"`
}

// Handler receives messages delivered by a Bus
type Handler func(ctx context.Context, msg Message)

// Bus carries invalidation messages between cache owners
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// dispatcher fans a message out to the registered handlers
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[uint64]Handler)}
}

func (d *dispatcher) add(h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) dispatch(ctx context.Context, msg Message) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
}
