package querycache

// Observer is a mounted subscription to one key. It receives a snapshot on
// every change of the entry and causes the entry to be reloaded whenever it
// is invalidated.
type Observer struct {
	id      uint64
	cache   *Cache
	key     Key
	loader  Loader
	opts    []FetchOption
	updates chan Snapshot
	closed  bool
}

// Observe mounts an observer on key. The current snapshot is delivered
// immediately; if the entry is not fresh a load is started in the background.
func (c *Cache) Observe(key Key, loader Loader, opts ...FetchOption) (*Observer, error) {
	fc := c.fetchConfig(opts)
	h := key.hash()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	c.nextID++
	o := &Observer{
		id:      c.nextID,
		cache:   c,
		key:     append(Key(nil), key...),
		loader:  loader,
		opts:    opts,
		updates: make(chan Snapshot, 1),
	}

	e := c.entryLocked(key, h)
	now := c.now()
	e.lastUsed = now
	e.observers[o.id] = o
	o.deliver(c.snapshotLocked(e))

	needsLoad := !e.freshLocked(now, fc.staleTime)
	if needsLoad {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if needsLoad {
		go c.backgroundFetch(o.key, loader, opts)
	}
	return o, nil
}

// Updates delivers the latest snapshot. Intermediate snapshots may be
// skipped when the receiver is slow. The channel is closed by Close.
func (o *Observer) Updates() <-chan Snapshot {
	return o.updates
}

// Current returns the entry's present state
func (o *Observer) Current() Snapshot {
	s, _ := o.cache.Entry(o.key)
	return s
}

// Refetch invalidates the observed key, and any key extending it, so the
// entry reloads now regardless of freshness
func (o *Observer) Refetch() {
	o.cache.Invalidate(o.key)
}

// Close unmounts the observer. A running load is not aborted.
func (o *Observer) Close() {
	c := o.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.closed {
		return
	}
	if e, ok := c.entries[o.key.hash()]; ok {
		delete(e.observers, o.id)
		e.lastUsed = c.now()
	}
	o.closeLocked()
}

func (o *Observer) closeLocked() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.updates)
}

// deliver replaces any unread snapshot with s. Called with the cache lock held.
func (o *Observer) deliver(s Snapshot) {
	if o.closed {
		return
	}
	for {
		select {
		case o.updates <- s:
			return
		default:
			select {
			case <-o.updates:
			default:
			}
		}
	}
}

func (c *Cache) notifyLocked(e *entry) {
	if len(e.observers) == 0 {
		return
	}
	s := c.snapshotLocked(e)
	for _, o := range e.observers {
		o.deliver(s)
	}
}
