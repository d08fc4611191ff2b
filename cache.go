package objcache

import "github.com/meigma/objcache/model"

// Weighted is the only demand the cache places on stored values: a scalar
// weight, in bytes, used for the size bound.
//
// Weight is read once, at insert time, while the cache lock is held: it
// must be cheap, and values must be immutable for as long as any cache or
// handle may hold them.
type Weighted interface {
	Weight() uint64
}

// Cache is the interest-handle flavor of the object cache.
//
// Alongside plain lookups, callers may request a [Handle] that pins an
// entry against eviction and independently retains the object. Use
// [SimpleCache] when handles are never needed.
//
// All methods are safe for concurrent use.
type Cache[V Weighted] struct {
	ledger *ledger[V]
}

// New creates an interest-handle flavored cache bounded by limits.
//
// limits may be a fixed [Limits] value or a dynamic source such as a
// [LimitsFunc]; the source is re-read once per Insert. New fails if
// limits is nil or initially unusable.
func New[V Weighted](limits LimitsSource) (*Cache[V], error) {
	led, err := newLedger[V](limits)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{ledger: led}, nil
}

// Get returns the object cached under id.
//
// A miss is not an error: it reports ok == false. On a hit, interest
// levels other than [UnlikelyNeededAgain] promote the entry's recency,
// and [WantHandle] additionally mints a pinning [Handle] (nil otherwise).
// Get never evicts.
func (c *Cache[V]) Get(id model.ObjectID, interest Interest) (object V, handle *Handle[V], ok bool) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, e, ok := l.lookup(id)
	if !ok {
		l.misses++
		var zero V
		return zero, nil, false
	}
	l.hits++
	if interest != UnlikelyNeededAgain {
		l.promote(elem)
	}
	var h *Handle[V]
	if interest == WantHandle {
		e.pins++
		h = newHandle(l, e)
	}
	return e.object, h, true
}

// Insert caches object under id at the most-recently-used position and
// then enforces the retention bounds.
//
// An existing entry for id is replaced, not merged: prior pins and
// recency are discarded along with the prior object reference (handles
// already minted keep working from their own references). With
// [WantHandle] the new entry starts pinned and the minted handle is
// returned; any other interest returns nil.
//
// The object is retrievable via Get as soon as Insert returns, until
// evicted or removed. Note the entry itself may be evicted by its own
// insert when it is oversized, unpinned, and beyond the count floor.
func (c *Cache[V]) Insert(id model.ObjectID, object V, interest Interest) *Handle[V] {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	limits := l.reloadLimits()
	e := l.insertOrReplace(id, object)
	var h *Handle[V]
	if interest == WantHandle {
		e.pins = 1
		h = newHandle(l, e)
	}
	l.evictIfNeeded(limits)
	return h
}

// Contains reports whether id is present without touching recency or the
// hit/miss counters.
func (c *Cache[V]) Contains(id model.ObjectID) bool {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _, ok := l.lookup(id)
	return ok
}

// Remove drops the entry for id regardless of pins and reports whether
// it was present. Outstanding handles keep serving their own references.
func (c *Cache[V]) Remove(id model.ObjectID) bool {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remove(id)
}

// Clear drops every entry. Outstanding handles keep serving their own
// references.
func (c *Cache[V]) Clear() {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
}

// Len returns the number of entries currently present.
func (c *Cache[V]) Len() int {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recency.Len()
}

// TotalWeight returns the summed weight in bytes of present entries.
func (c *Cache[V]) TotalWeight() uint64 {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalWeight
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}
