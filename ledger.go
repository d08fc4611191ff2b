package objcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/meigma/objcache/model"
)

// entry is the ledger's record for one cached object.
type entry[V Weighted] struct {
	id     model.ObjectID
	object V

	// weight is snapshotted at insert time and immutable for the entry's
	// life, so accounting never depends on the object after insertion.
	weight uint64

	// pins counts live interest handles minted against this entry.
	// Pinned entries are skipped by eviction.
	pins uint32

	// generation distinguishes successive entries for the same id. A
	// handle releases its pin only against the generation it was minted
	// for, so a stale handle can never touch a replacement entry.
	generation uint64
}

// ledger is the cache state shared by both flavors: the identity map, the
// recency order, and the retention accounting, all guarded by one mutex.
//
// Methods other than newLedger are split in two groups: the handle entry
// points (handles lock mu themselves, see handle.go) and the caller-locked
// helpers below, which require mu to be held.
type ledger[V Weighted] struct {
	mu     sync.Mutex
	limits LimitsSource

	// recency orders entries from most recently used (front) to least
	// (back). Element values are *entry[V].
	recency *list.List
	byID    map[model.ObjectID]*list.Element

	totalWeight uint64
	lastGen     uint64

	hits      uint64
	misses    uint64
	evictions uint64
	inserts   uint64
}

func newLedger[V Weighted](limits LimitsSource) (*ledger[V], error) {
	if limits == nil {
		return nil, ErrNilLimits
	}
	initial := limits.CacheLimits()
	if initial.MinimumCount < 0 {
		return nil, fmt.Errorf("%w: negative minimum count %d", ErrInvalidLimits, initial.MinimumCount)
	}
	return &ledger[V]{
		limits:  limits,
		recency: list.New(),
		byID:    make(map[model.ObjectID]*list.Element),
	}, nil
}

// reloadLimits re-reads the limits source. Called once per insert.
func (l *ledger[V]) reloadLimits() Limits {
	return l.limits.CacheLimits().sanitize()
}

// lookup finds the entry for id without touching recency.
func (l *ledger[V]) lookup(id model.ObjectID) (*list.Element, *entry[V], bool) {
	elem, ok := l.byID[id]
	if !ok {
		return nil, nil, false
	}
	return elem, elem.Value.(*entry[V]), true
}

// promote moves an entry to the most-recently-used position. Idempotent.
func (l *ledger[V]) promote(elem *list.Element) {
	l.recency.MoveToFront(elem)
}

// insertOrReplace adds an entry for id at the most-recently-used position.
// Replacement is not a merge: the prior entry's weight, recency, pins, and
// generation are all discarded, and handles minted against the prior
// generation are orphaned (they keep serving their own object reference;
// their release becomes a no-op).
func (l *ledger[V]) insertOrReplace(id model.ObjectID, object V) *entry[V] {
	l.inserts++
	l.lastGen++
	e := &entry[V]{
		id:         id,
		object:     object,
		weight:     object.Weight(),
		generation: l.lastGen,
	}

	if elem, old, ok := l.lookup(id); ok {
		l.totalWeight -= old.weight
		elem.Value = e
		l.recency.MoveToFront(elem)
	} else {
		l.byID[id] = l.recency.PushFront(e)
	}
	l.totalWeight += e.weight
	return e
}

// evictIfNeeded removes least-recently-used unpinned entries while the
// cache holds more than limits.MinimumCount entries and weighs more than
// limits.MaximumSize. One walk from the back suffices: when it passes the
// last unpinned candidate the loop ends at the front, leaving the cache
// over its soft size bound.
func (l *ledger[V]) evictIfNeeded(limits Limits) {
	elem := l.recency.Back()
	for elem != nil && l.recency.Len() > limits.MinimumCount && l.totalWeight > limits.MaximumSize {
		prev := elem.Prev()
		if elem.Value.(*entry[V]).pins == 0 {
			l.removeElement(elem)
			l.evictions++
		}
		elem = prev
	}
}

// removeElement unconditionally drops an entry and fixes the accounting.
func (l *ledger[V]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[V])
	l.recency.Remove(elem)
	delete(l.byID, e.id)
	l.totalWeight -= e.weight
}

// remove drops the entry for id, pinned or not. Outstanding handles keep
// serving their own references; their pins die with the entry.
func (l *ledger[V]) remove(id model.ObjectID) bool {
	elem, _, ok := l.lookup(id)
	if !ok {
		return false
	}
	l.removeElement(elem)
	return true
}

// clear drops every entry.
func (l *ledger[V]) clear() {
	l.recency.Init()
	clear(l.byID)
	l.totalWeight = 0
}

func (l *ledger[V]) snapshot() Stats {
	return Stats{
		EntryCount:  l.recency.Len(),
		TotalWeight: l.totalWeight,
		Hits:        l.hits,
		Misses:      l.misses,
		Evictions:   l.evictions,
		Inserts:     l.inserts,
	}
}
