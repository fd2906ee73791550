package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
)

// ConnectRedis opens a client for cfg and pings it, retrying a few times
// while the server comes up.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	const maxRetries = 5
	retryDelay := 2 * time.Second

	client := redis.NewClient(&redis.Options{
		Network:  "tcp",
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		log.WithComponent("invalidation").WithError(err).Warnf("Failed to connect to Redis (attempt %d/%d)", i+1, maxRetries)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
}

// RedisBus carries messages over a Redis pub/sub channel, so every process
// subscribed to the channel sees every published message, its own included.
type RedisBus struct {
	*dispatcher
	client  *redis.Client
	channel string
	logger  *logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBus creates a bus on channel. Call Start before expecting deliveries.
func NewRedisBus(client *redis.Client, channel string, log *logger.Logger) *RedisBus {
	return &RedisBus{
		dispatcher: newDispatcher(),
		client:     client,
		channel:    channel,
		logger:     log,
	}
}

// Start subscribes to the channel and begins delivering messages. It returns
// once the subscription is confirmed by the server.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	b.wg.Add(1)
	go b.receive(pubsub.Channel())

	b.logger.WithComponent("invalidation").WithField("channel", b.channel).Info("Subscribed to invalidation channel")
	return nil
}

func (b *RedisBus) receive(ch <-chan *redis.Message) {
	defer b.wg.Done()
	for m := range ch {
		var msg Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			b.logger.WithComponent("invalidation").WithError(err).Warn("Dropping malformed invalidation message")
			continue
		}
		b.dispatch(context.Background(), msg)
	}
}

// Publish sends msg to every subscriber of the channel
func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation message: %w", err)
	}
	return nil
}

// Subscribe registers h for every message received after Start
func (b *RedisBus) Subscribe(h Handler) func() {
	return b.add(h)
}

// Close ends the subscription and waits for the receive loop. The Redis
// client stays open; it belongs to the caller.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	b.wg.Wait()
	return err
}
