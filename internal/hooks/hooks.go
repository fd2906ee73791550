// Package hooks declares every backend read and write of the clinic client.
// A read is a Query bound to a cache key and a GET endpoint; a write is a
// Mutation that, once the backend confirms it, marks its related keys stale
// locally and announces them on the invalidation bus.
package hooks

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/kanb1/clinic-ai-app-sub001/internal/invalidation"
	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
	"github.com/kanb1/clinic-ai-app-sub001/internal/validation"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// Requester performs one backend call. *httpclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, method, path string, body, out any) error
}

// Hooks binds declarations to one cache, one backend and one bus
type Hooks struct {
	cache       *querycache.Cache
	client      Requester
	broadcaster *invalidation.Broadcaster
	validator   *validation.Validator
	logger      *logger.Logger
}

// New creates the hook set. broadcaster may be nil, in which case
// invalidations stay local.
func New(cache *querycache.Cache, client Requester, broadcaster *invalidation.Broadcaster, log *logger.Logger) *Hooks {
	return &Hooks{
		cache:       cache,
		client:      client,
		broadcaster: broadcaster,
		validator:   validation.New(),
		logger:      log,
	}
}

// Status is the lifecycle state of a query result
type Status string

const (
	// StatusIdle means the query is disabled and nothing was requested
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is what a query hands to its consumer
type Result[T any] struct {
	Data       T
	Err        error
	Status     Status
	IsLoading  bool
	IsFetching bool
	Stale      bool
}

// Query is a declared read
type Query[T any] struct {
	h       *Hooks
	key     querycache.Key
	path    string
	enabled bool
	opts    []querycache.FetchOption
}

func newQuery[T any](h *Hooks, key querycache.Key, path string, enabled bool, opts ...querycache.FetchOption) *Query[T] {
	return &Query[T]{h: h, key: key, path: path, enabled: enabled, opts: opts}
}

// Key is the cache key of the query
func (q *Query[T]) Key() querycache.Key {
	return q.key
}

// Enabled reports whether the query will load. A query missing a required
// parameter is disabled.
func (q *Query[T]) Enabled() bool {
	return q.enabled
}

func (q *Query[T]) load(ctx context.Context) (any, error) {
	var out T
	if err := q.h.client.Request(ctx, http.MethodGet, q.path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch returns the cached value when fresh and loads it otherwise. A
// disabled query returns an idle result without touching cache or network.
func (q *Query[T]) Fetch(ctx context.Context) Result[T] {
	if !q.enabled {
		return Result[T]{Status: StatusIdle}
	}

	v, err := q.h.cache.Fetch(ctx, q.key, q.load, q.opts...)
	if err != nil {
		return Result[T]{Err: err, Status: StatusError}
	}
	data, err := cast[T](q.key, v)
	if err != nil {
		return Result[T]{Err: err, Status: StatusError}
	}
	return Result[T]{Data: data, Status: StatusSuccess}
}

// Watch mounts the query. The watch delivers a result on every change of the
// entry and reloads it whenever it is invalidated, until Close.
func (q *Query[T]) Watch() (*Watch[T], error) {
	w := &Watch[T]{
		key:     q.key,
		updates: make(chan Result[T], 1),
		done:    make(chan struct{}),
	}
	if !q.enabled {
		close(w.updates)
		return w, nil
	}

	obs, err := q.h.cache.Observe(q.key, q.load, q.opts...)
	if err != nil {
		return nil, err
	}
	w.obs = obs
	go w.forward()
	return w, nil
}

func cast[T any](key querycache.Key, v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	data, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %s holds %s, not %s", key, reflect.TypeOf(v), reflect.TypeOf((*T)(nil)).Elem())
	}
	return data, nil
}

func fromSnapshot[T any](s querycache.Snapshot) Result[T] {
	r := Result[T]{
		IsFetching: s.Fetching,
		Stale:      s.Stale,
	}
	switch s.Status {
	case querycache.StatusSuccess:
		data, err := cast[T](s.Key, s.Value)
		if err != nil {
			r.Err = err
			r.Status = StatusError
			return r
		}
		r.Data = data
		r.Status = StatusSuccess
	case querycache.StatusError:
		r.Err = s.Err
		r.Status = StatusError
	default:
		// a mounted entry without data is always loading or about to
		r.Status = StatusPending
		r.IsLoading = true
	}
	return r
}

// Watch is a mounted query
type Watch[T any] struct {
	key     querycache.Key
	obs     *querycache.Observer
	updates chan Result[T]
	done    chan struct{}
	once    sync.Once
}

func (w *Watch[T]) forward() {
	defer close(w.updates)
	for s := range w.obs.Updates() {
		r := fromSnapshot[T](s)
		// latest wins
		select {
		case w.updates <- r:
		default:
			select {
			case <-w.updates:
			default:
			}
			select {
			case w.updates <- r:
			case <-w.done:
				return
			}
		}
	}
}

// Updates delivers the latest result. The channel is closed after Close, or
// at once for a disabled query.
func (w *Watch[T]) Updates() <-chan Result[T] {
	return w.updates
}

// Current returns the present result without waiting
func (w *Watch[T]) Current() Result[T] {
	if w.obs == nil {
		return Result[T]{Status: StatusIdle}
	}
	return fromSnapshot[T](w.obs.Current())
}

// Refetch reloads the query now
func (w *Watch[T]) Refetch() {
	if w.obs != nil {
		w.obs.Refetch()
	}
}

// Close unmounts the watch. A running load is not aborted.
func (w *Watch[T]) Close() {
	if w.obs == nil {
		return
	}
	w.once.Do(func() {
		close(w.done)
		w.obs.Close()
	})
}

// Mutation is a declared write
type Mutation[In, Out any] struct {
	h           *Hooks
	name        string
	method      string
	path        func(In) string
	body        func(In) any
	invalidates func(In) []querycache.Key
}

// Mutate performs the write. Only after the backend confirms it are the
// related keys invalidated locally and the invalidation enqueued on the bus;
// a failed write invalidates nothing.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	var out Out

	var body any
	if m.body != nil {
		body = m.body(in)
		if isStruct(body) {
			if errs := m.h.validator.Check(body); len(errs) > 0 {
				return out, types.NewValidationError(validation.InvalidInputMessage, errs)
			}
		}
	}

	if err := m.h.client.Request(ctx, m.method, m.path(in), body, &out); err != nil {
		return out, fmt.Errorf("%s: %w", m.name, err)
	}

	keys := m.invalidates(in)
	for _, key := range keys {
		m.h.cache.Invalidate(key)
	}
	if m.h.broadcaster != nil {
		m.h.broadcaster.Broadcast(keys...)
	}

	m.h.logger.WithContext(ctx).WithField("mutation", m.name).WithField("invalidated", len(keys)).Debug("Mutation applied")
	return out, nil
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}
