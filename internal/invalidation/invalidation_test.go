package invalidation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/monitoring"
)

// MockBus is a mock implementation of Bus
type MockBus struct {
	mock.Mock
}

func (m *MockBus) Publish(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockBus) Subscribe(h Handler) func() {
	m.Called(h)
	return func() {}
}

func (m *MockBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingInvalidator remembers every prefix it was asked to invalidate
type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []querycache.Key
}

func (r *recordingInvalidator) Invalidate(prefix querycache.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
	return 1
}

func (r *recordingInvalidator) seen() []querycache.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]querycache.Key(nil), r.prefixes...)
}

// busCount reads invalidation_bus_messages_total for one direction
func busCount(t *testing.T, metrics *monitoring.MetricsCollector, direction string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "invalidation_bus_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "direction" && lp.GetValue() == direction {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func splitAddr(t *testing.T, mr *miniredis.Miniredis) (string, int) {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return mr.Host(), port
}

func runSync(t *testing.T) {
	t.Helper()
	runAsync = func(log *logger.Logger, op string, fn func(ctx context.Context) error) {
		_ = fn(context.Background())
	}
	t.Cleanup(func() { runAsync = safeAsync })
}

func TestBroadcaster_PublishesStampedMessage(t *testing.T) {
	runSync(t)

	bus := new(MockBus)
	metrics := monitoring.NewMetricsCollector("test")
	b := NewBroadcaster(bus, logger.Discard(), metrics)

	bus.On("Publish", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.Source == b.Source() &&
			msg.ID != "" &&
			len(msg.Keys) == 2 &&
			msg.Keys[0].String() == `["prescriptions","p1"]` &&
			msg.Keys[1].String() == `["admin-doctors"]`
	})).Return(nil).Once()

	b.Broadcast(querycache.NewKey("prescriptions", "p1"), querycache.NewKey("admin-doctors"))

	bus.AssertExpectations(t)
	assert.Equal(t, float64(1), busCount(t, metrics, "sent"))
}

func TestBroadcaster_NoKeysNoMessage(t *testing.T) {
	runSync(t)

	bus := new(MockBus)
	b := NewBroadcaster(bus, logger.Discard(), monitoring.NewMetricsCollector("test"))
	b.Broadcast()

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestBroadcaster_PublishFailureIsSwallowed(t *testing.T) {
	runSync(t)

	bus := new(MockBus)
	bus.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	b := NewBroadcaster(bus, logger.Discard(), monitoring.NewMetricsCollector("test"))
	assert.NotPanics(t, func() { b.Broadcast(querycache.NewKey("me")) })
	bus.AssertExpectations(t)
}

func TestBroadcaster_AttachIgnoresOwnMessages(t *testing.T) {
	runSync(t)

	bus := NewLocalBus()
	metrics := monitoring.NewMetricsCollector("test")
	a := NewBroadcaster(bus, logger.Discard(), metrics)
	b := NewBroadcaster(bus, logger.Discard(), metrics)

	cacheA := &recordingInvalidator{}
	cacheB := &recordingInvalidator{}
	a.Attach(cacheA)
	detachB := b.Attach(cacheB)

	a.Broadcast(querycache.NewKey("admin-secretaries"))

	assert.Empty(t, cacheA.seen())
	assert.Equal(t, []querycache.Key{querycache.NewKey("admin-secretaries")}, cacheB.seen())

	detachB()
	a.Broadcast(querycache.NewKey("my-clinic"))
	assert.Len(t, cacheB.seen(), 1)
}

func TestLocalBus_ClosedRejectsPublish(t *testing.T) {
	bus := NewLocalBus()
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), Message{}), ErrBusClosed)
}

func TestAttach_InvalidatesRealCache(t *testing.T) {
	runSync(t)

	bus := NewLocalBus()
	metrics := monitoring.NewMetricsCollector("test")
	cache := querycache.New(querycache.Options{StaleTime: time.Minute}, logger.Discard(), metrics)
	defer cache.Close()

	_, err := cache.Fetch(context.Background(), querycache.NewKey("patient-journals", "p1"), func(ctx context.Context) (any, error) {
		return "journals", nil
	})
	require.NoError(t, err)

	remote := NewBroadcaster(bus, logger.Discard(), metrics)
	local := NewBroadcaster(bus, logger.Discard(), metrics)
	local.Attach(cache)

	remote.Broadcast(querycache.NewKey("patient-journals"))

	snap, ok := cache.Entry(querycache.NewKey("patient-journals", "p1"))
	require.True(t, ok)
	assert.True(t, snap.Stale)
}

func TestRedisBus_DeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)

	newBus := func() *RedisBus {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		bus := NewRedisBus(client, "clinic:cache-invalidation", logger.Discard())
		require.NoError(t, bus.Start(context.Background()))
		t.Cleanup(func() { _ = bus.Close() })
		return bus
	}

	busA := newBus()
	busB := newBus()
	metrics := monitoring.NewMetricsCollector("test")

	a := NewBroadcaster(busA, logger.Discard(), metrics)
	b := NewBroadcaster(busB, logger.Discard(), metrics)
	cacheA := &recordingInvalidator{}
	cacheB := &recordingInvalidator{}
	a.Attach(cacheA)
	b.Attach(cacheB)

	a.Broadcast(querycache.NewKey("doctor-timeslots"))

	require.Eventually(t, func() bool {
		return len(cacheB.seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, querycache.NewKey("doctor-timeslots"), cacheB.seen()[0])

	// A hears its own message on the channel but does not apply it.
	require.Eventually(t, func() bool {
		return busCount(t, metrics, "ignored") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, cacheA.seen())
}

func TestRedisBus_MalformedPayloadSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewRedisBus(client, "inv", logger.Discard())
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Close()

	received := make(chan Message, 1)
	bus.Subscribe(func(ctx context.Context, msg Message) { received <- msg })

	require.NoError(t, client.Publish(context.Background(), "inv", "not-json").Err())
	require.NoError(t, bus.Publish(context.Background(), Message{ID: "m1", Keys: []querycache.Key{querycache.NewKey("me")}}))

	select {
	case msg := <-received:
		assert.Equal(t, "m1", msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestRedisBus_CloseIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewRedisBus(client, "inv", logger.Discard())
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Close())
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := splitAddr(t, mr)

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Host: host, Port: port}, logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestConnectRedis_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectRedis(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1}, logger.Discard())
	assert.Error(t, err)
}
