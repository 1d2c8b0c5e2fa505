// Package cache provides a bounded in-memory TTL cache with in-flight
// de-duplication of concurrent producers.
package cache

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultTTL is used when neither the cache nor the caller supplies a TTL.
	DefaultTTL = 60 * time.Second
	// DefaultMaxEntries bounds the cache when no capacity is configured.
	DefaultMaxEntries = 100
	// NoExpiry as a TTL stores entries that never expire. They still count
	// against the capacity budget.
	NoExpiry time.Duration = -1
)

// Producer computes a value for a cache miss.
type Producer[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means never
	createdAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// call tracks one in-flight producer. done is closed once val/err are set.
// waiters counts callers still blocked on it; cancel stops the producer.
type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// TTL is a concurrency-safe key/value cache whose entries expire after a
// time-to-live. It holds at most MaxEntries live entries.
type TTL[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	inflight   map[string]*call[V]
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// WithTTL sets the default time-to-live for entries.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithMaxEntries sets the entry budget.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an empty cache.
func New[V any](opts ...Option) *TTL[V] {
	o := options{ttl: DefaultTTL, maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 && o.ttl != NoExpiry {
		o.ttl = DefaultTTL
	}
	if o.maxEntries <= 0 {
		o.maxEntries = DefaultMaxEntries
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &TTL[V]{
		entries:    make(map[string]entry[V]),
		inflight:   make(map[string]*call[V]),
		defaultTTL: o.ttl,
		maxEntries: o.maxEntries,
		now:        o.now,
	}
}

// Has reports whether key holds a live entry.
func (c *TTL[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Get returns the live value for key. Expired entries are removed.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *TTL[V]) getLocked(key string) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. A ttl of NoExpiry never expires; any other
// non-positive ttl uses the cache default.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *TTL[V]) setLocked(key string, value V, ttl time.Duration) {
	if ttl <= 0 && ttl != NoExpiry {
		ttl = c.defaultTTL
	}
	now := c.now()
	e := entry[V]{value: value, createdAt: now}
	if ttl != NoExpiry {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	c.enforceLocked(now)
}

// enforceLocked purges expired entries first, then drops the oldest-created
// until the cache is within budget.
func (c *TTL[V]) enforceLocked(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		return
	}
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > c.maxEntries {
		var (
			oldestKey string
			oldest    time.Time
			found     bool
		)
		for k, e := range c.entries {
			if !found || e.createdAt.Before(oldest) {
				oldestKey, oldest, found = k, e.createdAt, true
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry. In-flight producers are left to finish.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, including ones that have expired
// but not yet been evicted.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Remember returns the live value for key, or runs producer to compute it.
// Concurrent callers for the same key share a single producer invocation and
// its result. Errors are returned to every waiter and never cached.
//
// The producer keeps the values of the first caller's ctx but not its
// cancellation. A caller whose ctx is done stops waiting and gets ctx.Err();
// when the last waiter leaves, the producer's ctx is cancelled and the key
// is free for a fresh call.
func (c *TTL[V]) Remember(ctx context.Context, key string, producer Producer[V], ttl time.Duration) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	cl, ok := c.inflight[key]
	if !ok {
		pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call[V]{done: make(chan struct{}), cancel: cancel}
		c.inflight[key] = cl
		go c.run(pctx, key, cl, producer, ttl)
	}
	cl.waiters++
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		c.leave(key, cl)
		return zero, ctx.Err()
	}
}

// Waiting returns the number of callers blocked on key's producer.
func (c *TTL[V]) Waiting(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.inflight[key]; ok {
		return cl.waiters
	}
	return 0
}

// leave drops one waiter from cl and cancels the producer if none remain.
func (c *TTL[V]) leave(key string, cl *call[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl.waiters--
	if cl.waiters > 0 {
		return
	}
	if c.inflight[key] == cl {
		delete(c.inflight, key)
	}
	cl.cancel()
}

func (c *TTL[V]) run(ctx context.Context, key string, cl *call[V], producer Producer[V], ttl time.Duration) {
	defer close(cl.done)
	defer cl.cancel()
	val, err := producer(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	cl.val, cl.err = val, err
	if c.inflight[key] != cl {
		// Abandoned by every waiter.
		return
	}
	delete(c.inflight, key)
	if err == nil {
		c.setLocked(key, val, ttl)
	}
}
