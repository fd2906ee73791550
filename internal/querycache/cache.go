package querycache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/monitoring"
)

// ErrClosed is returned by operations on a cache after Close
var ErrClosed = errors.New("query cache closed")

// Status is the state of a cache entry
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Loader produces the value for a key. The context is owned by the cache,
// not by the caller that triggered the load.
type Loader func(ctx context.Context) (any, error)

// Options holds the cache-wide policy
type Options struct {
	StaleTime       time.Duration
	GCTime          time.Duration
	Retry           int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	CleanupInterval time.Duration
}

// OptionsFromConfig converts the millisecond-based config section
func OptionsFromConfig(cfg config.CacheConfig) Options {
	return Options{
		StaleTime:       config.Duration(cfg.StaleTime),
		GCTime:          config.Duration(cfg.GCTime),
		Retry:           cfg.Retry,
		RetryDelay:      config.Duration(cfg.RetryDelay),
		MaxRetryDelay:   config.Duration(cfg.MaxRetryDelay),
		CleanupInterval: config.Duration(cfg.CleanupInterval),
	}
}

// Snapshot is a read-only view of an entry
type Snapshot struct {
	Key          Key
	Status       Status
	Value        any
	Err          error
	Stale        bool
	Fetching     bool
	FailureCount int
	UpdatedAt    time.Time
	Observers    int
}

type entry struct {
	key          Key
	status       Status
	value        any
	err          error
	invalidated  bool
	failureCount int
	updatedAt    time.Time
	lastUsed     time.Time

	// generation increases on every invalidation. A load remembers the
	// generation it started under; its result is stale if they differ.
	generation uint64
	fetching   bool
	fetchGen   uint64
	loadSeq    uint64
	settledSeq uint64

	observers map[uint64]*Observer
}

// Cache is a keyed store of query results with in-flight coalescing,
// staleness and prefix invalidation. Build one per application with New,
// call Start once, and Close on shutdown.
type Cache struct {
	opts    Options
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	closed  bool
	started bool
	nextID  uint64

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

// New creates a cache. metrics must not be nil.
func New(opts Options, log *logger.Logger, metrics *monitoring.MetricsCollector) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		opts:    opts,
		logger:  log,
		metrics: metrics,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start launches the garbage collector. It is a no-op when CleanupInterval
// is zero or the cache is already started.
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.closed || c.opts.CleanupInterval <= 0 {
		return
	}
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collectGarbage()
			case <-c.stop:
				return
			}
		}
	}()
}

// Close aborts in-flight loads, closes every observer and drops all entries.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		for _, o := range e.observers {
			o.closeLocked()
		}
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	c.cancel()
	close(c.stop)
	c.wg.Wait()
	c.metrics.SetCacheEntries(0)
	c.logger.WithComponent("querycache").Info("Query cache closed")
}

type fetchConfig struct {
	retry     int
	staleTime time.Duration
}

// FetchOption overrides the cache policy for one query
type FetchOption func(*fetchConfig)

// WithRetry sets the number of retries after a failed load. Zero disables retries.
func WithRetry(n int) FetchOption {
	return func(fc *fetchConfig) {
		if n >= 0 {
			fc.retry = n
		}
	}
}

// WithStaleTime sets how long a successful result is served without reloading
func WithStaleTime(d time.Duration) FetchOption {
	return func(fc *fetchConfig) {
		fc.staleTime = d
	}
}

func (c *Cache) fetchConfig(opts []FetchOption) fetchConfig {
	fc := fetchConfig{retry: c.opts.Retry, staleTime: c.opts.StaleTime}
	for _, opt := range opts {
		opt(&fc)
	}
	return fc
}

// Fetch returns the value for key. A fresh entry is returned without calling
// loader. Otherwise the caller joins the load already running for the
// current generation of key, or starts one. Cancelling ctx only stops this
// caller's wait.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader, opts ...FetchOption) (any, error) {
	fc := c.fetchConfig(opts)
	h := key.hash()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e := c.entryLocked(key, h)
	now := c.now()
	e.lastUsed = now
	if e.freshLocked(now, fc.staleTime) {
		value := e.value
		c.mu.Unlock()
		c.metrics.RecordCacheHit(key.Root())
		return value, nil
	}
	ch := c.loadLocked(e, h, loader, fc)
	c.mu.Unlock()

	c.metrics.RecordCacheMiss(key.Root())

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loadLocked joins or starts the load for e's current generation.
func (c *Cache) loadLocked(e *entry, h string, loader Loader, fc fetchConfig) <-chan singleflight.Result {
	if !e.fetching || e.fetchGen != e.generation {
		e.loadSeq++
		e.fetching = true
		e.fetchGen = e.generation
		c.notifyLocked(e)
		c.logger.CacheEvent("load_started", e.key.String(), map[string]interface{}{"generation": e.generation})
	}

	seq := e.loadSeq
	gen := e.fetchGen
	key := e.key
	callKey := h + "#" + strconv.FormatUint(seq, 10)

	return c.group.DoChan(callKey, func() (interface{}, error) {
		value, failures, err := c.runLoader(loader, fc)
		c.settle(h, gen, seq, value, failures, err)
		c.metrics.RecordCacheLoad(key.Root(), err == nil)
		return value, err
	})
}

// runLoader invokes loader, retrying with exponential delay on failure.
func (c *Cache) runLoader(loader Loader, fc fetchConfig) (any, int, error) {
	failures := 0
	for {
		value, err := loader(c.ctx)
		if err == nil {
			return value, 0, nil
		}
		failures++
		if failures > fc.retry || c.ctx.Err() != nil {
			return nil, failures, err
		}

		timer := time.NewTimer(c.retryDelay(failures - 1))
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return nil, failures, err
		}
	}
}

func (c *Cache) retryDelay(attempt int) time.Duration {
	delay := c.opts.RetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if c.opts.MaxRetryDelay > 0 && delay >= c.opts.MaxRetryDelay {
			return c.opts.MaxRetryDelay
		}
	}
	return delay
}

// settle stores the outcome of load seq. Results older than one already
// stored are dropped.
func (c *Cache) settle(h string, gen, seq uint64, value any, failures int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[h]
	if !ok {
		return
	}
	if e.loadSeq == seq {
		e.fetching = false
	}
	if seq < e.settledSeq {
		return
	}
	e.settledSeq = seq
	e.failureCount = failures
	e.updatedAt = c.now()
	e.invalidated = gen != e.generation

	if err != nil {
		e.status = StatusError
		e.err = err
		c.logger.CacheEvent("load_failed", e.key.String(), map[string]interface{}{"error": err.Error(), "failures": failures})
	} else {
		e.status = StatusSuccess
		e.value = value
		e.err = nil
		c.logger.CacheEvent("load_succeeded", e.key.String(), nil)
	}

	c.notifyLocked(e)
}

// Invalidate marks every entry whose key starts with prefix as stale and
// reloads those that have observers. It returns the number of entries marked.
func (c *Cache) Invalidate(prefix Key) int {
	type refetch struct {
		key    Key
		loader Loader
		opts   []FetchOption
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}

	marked := 0
	var pending []refetch
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		e.generation++
		marked++
		c.notifyLocked(e)

		if o := e.anyObserver(); o != nil {
			pending = append(pending, refetch{key: e.key, loader: o.loader, opts: o.opts})
		}
	}
	c.wg.Add(len(pending))
	c.mu.Unlock()

	for _, r := range pending {
		go c.backgroundFetch(r.key, r.loader, r.opts)
	}

	if marked > 0 {
		c.metrics.RecordInvalidation(prefix.Root(), marked)
	}
	c.logger.CacheEvent("invalidated", prefix.String(), map[string]interface{}{"entries": marked, "refetching": len(pending)})
	return marked
}

// backgroundFetch reloads key for its observers. The caller has already
// done wg.Add(1).
func (c *Cache) backgroundFetch(key Key, loader Loader, opts []FetchOption) {
	defer c.wg.Done()
	if _, err := c.Fetch(c.ctx, key, loader, opts...); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.WithComponent("querycache").WithError(err).WithField("key", key.String()).Debug("Background refetch failed")
	}
}

// Entry returns a snapshot of the entry for key
func (c *Cache) Entry(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.hash()]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(e), true
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) entryLocked(key Key, h string) *entry {
	e, ok := c.entries[h]
	if !ok {
		e = &entry{
			key:       append(Key(nil), key...),
			status:    StatusPending,
			observers: make(map[uint64]*Observer),
		}
		c.entries[h] = e
		c.metrics.SetCacheEntries(len(c.entries))
	}
	return e
}

func (e *entry) freshLocked(now time.Time, staleTime time.Duration) bool {
	return e.status == StatusSuccess && !e.invalidated && now.Sub(e.updatedAt) < staleTime
}

func (e *entry) anyObserver() *Observer {
	for _, o := range e.observers {
		return o
	}
	return nil
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		Key:          e.key,
		Status:       e.status,
		Value:        e.value,
		Err:          e.err,
		Stale:        !e.freshLocked(c.now(), c.opts.StaleTime),
		Fetching:     e.fetching,
		FailureCount: e.failureCount,
		UpdatedAt:    e.updatedAt,
		Observers:    len(e.observers),
	}
}

// collectGarbage drops idle, unobserved entries older than GCTime
func (c *Cache) collectGarbage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.opts.GCTime)
	removed := 0
	for h, e := range c.entries {
		if len(e.observers) > 0 || e.fetching {
			continue
		}
		if e.lastUsed.Before(cutoff) && e.updatedAt.Before(cutoff) {
			delete(c.entries, h)
			removed++
		}
	}
	c.metrics.SetCacheEntries(len(c.entries))
	if removed > 0 {
		c.logger.CacheEvent("collected", "", map[string]interface{}{"entries": removed})
	}
}
