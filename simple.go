package objcache

import "github.com/meigma/objcache/model"

// SimpleCache is the plain flavor of the object cache: same retention
// policy as [Cache], but it never mints handles and entries are never
// pinned. Interest is advisory and affects only recency.
//
// All methods are safe for concurrent use.
type SimpleCache[V Weighted] struct {
	ledger *ledger[V]
}

// NewSimple creates a simple-flavored cache bounded by limits.
//
// limits may be a fixed [Limits] value or a dynamic source such as a
// [LimitsFunc]; the source is re-read once per Insert. NewSimple fails if
// limits is nil or initially unusable.
func NewSimple[V Weighted](limits LimitsSource) (*SimpleCache[V], error) {
	led, err := newLedger[V](limits)
	if err != nil {
		return nil, err
	}
	return &SimpleCache[V]{ledger: led}, nil
}

// Get returns the object cached under id.
//
// A miss is not an error: it reports ok == false. On a hit, interest
// levels other than [UnlikelyNeededAgain] promote the entry's recency;
// [WantHandle] has no further effect on this flavor. Get never evicts.
func (c *SimpleCache[V]) Get(id model.ObjectID, interest Interest) (object V, ok bool) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, e, ok := l.lookup(id)
	if !ok {
		l.misses++
		var zero V
		return zero, false
	}
	l.hits++
	if interest != UnlikelyNeededAgain {
		l.promote(elem)
	}
	return e.object, true
}

// Insert caches object under id at the most-recently-used position,
// replacing any existing entry, and then enforces the retention bounds.
//
// The object is retrievable via Get as soon as Insert returns, until
// evicted or removed.
func (c *SimpleCache[V]) Insert(id model.ObjectID, object V) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	limits := l.reloadLimits()
	l.insertOrReplace(id, object)
	l.evictIfNeeded(limits)
}

// Contains reports whether id is present without touching recency or the
// hit/miss counters.
func (c *SimpleCache[V]) Contains(id model.ObjectID) bool {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _, ok := l.lookup(id)
	return ok
}

// Remove drops the entry for id and reports whether it was present.
func (c *SimpleCache[V]) Remove(id model.ObjectID) bool {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remove(id)
}

// Clear drops every entry.
func (c *SimpleCache[V]) Clear() {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
}

// Len returns the number of entries currently present.
func (c *SimpleCache[V]) Len() int {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recency.Len()
}

// TotalWeight returns the summed weight in bytes of present entries.
func (c *SimpleCache[V]) TotalWeight() uint64 {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalWeight
}

// Stats returns a snapshot of the cache counters.
func (c *SimpleCache[V]) Stats() Stats {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}
