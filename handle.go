package objcache

import (
	"sync/atomic"

	"github.com/meigma/objcache/model"
)

// Handle is a caller-held claim on a cached object, minted by a [Cache]
// under [WantHandle] interest.
//
// A handle does two independent things: it pins its entry so eviction
// skips it, and it holds its own strong reference to the object. The two
// are deliberately decoupled. [Handle.Release] drops only the pin;
// [Handle.Get] serves the object from the handle's own reference for the
// handle's entire lifetime, even after the pin is gone or the cache has
// evicted, removed, or replaced the entry. After fetching through the
// cache, prefer Get on a handle you already hold over a fresh cache
// lookup.
//
// Release is idempotent: the pin a handle represents is released at most
// once, so double releases are safe no-ops rather than double-decrements.
// A nil *Handle is a valid empty handle: Get reports false, Release and
// Clone do nothing.
//
// Handle methods are safe for concurrent use.
type Handle[V Weighted] struct {
	object     V
	id         model.ObjectID
	generation uint64

	// pinned records whether this handle's mint actually counted a pin.
	// Clones taken after the entry vanished serve the object but pin
	// nothing.
	pinned bool

	// released guards the one pin decrement this handle may perform.
	released atomic.Bool

	ledger *ledger[V]
}

// newHandle mints a handle for e's current generation. The caller holds
// the ledger lock and has already counted the pin.
func newHandle[V Weighted](l *ledger[V], e *entry[V]) *Handle[V] {
	return &Handle[V]{
		object:     e.object,
		id:         e.id,
		generation: e.generation,
		pinned:     true,
		ledger:     l,
	}
}

// Get returns the object the handle was minted for. It never consults the
// cache, so it succeeds even after release, eviction, removal, or
// replacement. ok is false only for nil handles.
func (h *Handle[V]) Get() (object V, ok bool) {
	if h == nil {
		var zero V
		return zero, false
	}
	return h.object, true
}

// ObjectID returns the id the handle was minted for. Nil handles return
// the zero id.
func (h *Handle[V]) ObjectID() model.ObjectID {
	if h == nil {
		return model.ObjectID{}
	}
	return h.id
}

// Release drops the handle's pin. Only the first call has an effect.
//
// The pin is released against the generation the handle was minted for:
// if the entry has since been evicted, removed, or replaced, there is
// nothing to unpin and Release quietly does nothing. Releasing never
// triggers eviction; an unpinned entry becomes an eviction candidate on
// the next insert.
func (h *Handle[V]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	if !h.pinned {
		return
	}
	l := h.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, e, ok := l.lookup(h.id); ok && e.generation == h.generation && e.pins > 0 {
		e.pins--
	}
}

// Clone mints an additional handle for the same object by re-acquiring
// interest: if the ledger still holds the generation this handle was
// minted for, the entry's pin count is incremented again, and releasing
// the clone decrements it again. If the entry is already gone, the clone
// is unpinned but still serves Get from its own reference.
//
// Destroying n clones must balance n acquisitions, so each clone is
// released independently of its source. Cloning a nil handle returns nil.
func (h *Handle[V]) Clone() *Handle[V] {
	if h == nil {
		return nil
	}
	clone := &Handle[V]{
		object:     h.object,
		id:         h.id,
		generation: h.generation,
		ledger:     h.ledger,
	}

	l := h.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, e, ok := l.lookup(h.id); ok && e.generation == h.generation {
		e.pins++
		clone.pinned = true
	}
	return clone
}
