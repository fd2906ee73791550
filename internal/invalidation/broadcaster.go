package invalidation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/monitoring"
)

// Invalidator is the part of the query cache the bus writes to
type Invalidator interface {
	Invalidate(prefix querycache.Key) int
}

// Broadcaster stamps the messages of one process with its instance ID,
// publishes them and applies messages coming from other instances.
type Broadcaster struct {
	bus     Bus
	source  string
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

// NewBroadcaster creates a broadcaster with a fresh instance ID
func NewBroadcaster(bus Bus, log *logger.Logger, metrics *monitoring.MetricsCollector) *Broadcaster {
	return &Broadcaster{
		bus:     bus,
		source:  uuid.NewString(),
		logger:  log,
		metrics: metrics,
	}
}

// Source is the instance ID stamped on outgoing messages
func (b *Broadcaster) Source() string {
	return b.source
}

// Broadcast enqueues a message naming keys. It does not wait for delivery;
// publish failures are logged.
func (b *Broadcaster) Broadcast(keys ...querycache.Key) {
	if len(keys) == 0 {
		return
	}
	msg := Message{
		ID:     uuid.NewString(),
		Source: b.source,
		Keys:   keys,
		SentAt: time.Now().UTC(),
	}
	runAsync(b.logger, "publish_invalidation", func(ctx context.Context) error {
		if err := b.bus.Publish(ctx, msg); err != nil {
			return err
		}
		b.metrics.RecordBusMessage("sent")
		return nil
	})
}

// Attach applies every message from another instance to cache. The returned
// function detaches it.
func (b *Broadcaster) Attach(cache Invalidator) func() {
	return b.bus.Subscribe(func(ctx context.Context, msg Message) {
		if msg.Source == b.source {
			b.metrics.RecordBusMessage("ignored")
			return
		}
		b.metrics.RecordBusMessage("received")

		marked := 0
		for _, key := range msg.Keys {
			marked += cache.Invalidate(key)
		}
		b.logger.WithComponent("invalidation").WithFields(map[string]interface{}{
			"message_id": msg.ID,
			"source":     msg.Source,
			"keys":       len(msg.Keys),
			"entries":    marked,
		}).Debug("Applied remote invalidation")
	})
}
