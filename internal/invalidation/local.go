package invalidation

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned when publishing on a closed bus
var ErrBusClosed = errors.New("invalidation bus closed")

// LocalBus delivers messages to subscribers in the same process. Publish
// returns after every handler has run.
type LocalBus struct {
	*dispatcher
	stateMu sync.RWMutex
	closed  bool
}

// NewLocalBus creates an in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{dispatcher: newDispatcher()}
}

// Publish hands msg to every subscriber
func (b *LocalBus) Publish(ctx context.Context, msg Message) error {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	b.dispatch(ctx, msg)
	return nil
}

// Subscribe registers h for every later message
func (b *LocalBus) Subscribe(h Handler) func() {
	return b.add(h)
}

// Close stops delivery
func (b *LocalBus) Close() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.closed = true
	return nil
}
