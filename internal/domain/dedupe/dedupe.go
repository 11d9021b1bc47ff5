// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxSize = 50000

// Deduper records idempotency keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) (bool, error)

	// Unrecord removes a key, allowing it to be retried. Used when a request
	// was recorded but failed to be processed.
	Unrecord(ctx context.Context, key string) error

	Size() int64
}

type entry struct {
	key     string
	expires time.Time
}

// inMemoryDeduper keeps keys in insertion order so the oldest can be evicted
// and expired keys can be swept from the front.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int        // 0 or negative = UNBOUNDED
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		now:     time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if _, exists := d.seen[key]; exists {
		return true, nil
	}

	if d.maxSize > 0 {
		for d.order.Len() >= d.maxSize {
			d.remove(d.order.Front())
		}
	}

	e := entry{key: key}
	if d.ttl > 0 {
		e.expires = now.Add(d.ttl)
	}
	d.seen[key] = d.order.PushBack(e)
	return false, nil
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		d.remove(el)
	}
	return nil
}

// expire drops keys whose TTL has passed. Keys share one TTL, so the list
// is ordered by expiry as well. Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Before(el.Value.(entry).expires) {
			return
		}
		d.remove(el)
	}
}

func (d *inMemoryDeduper) remove(el *list.Element) {
	delete(d.seen, el.Value.(entry).key)
	d.order.Remove(el)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
