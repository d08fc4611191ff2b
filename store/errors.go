package store

import "errors"

// Sentinel errors for object store operations.
var (
	// ErrObjectNotFound is returned when a backing store has no object for
	// an id. A backing store miss is an error, unlike an in-memory cache
	// miss: the id came from a tree entry, so the object ought to exist.
	ErrObjectNotFound = errors.New("store: object not found")

	// ErrNilBackingStore is returned when an ObjectStore is constructed
	// without a backing store.
	ErrNilBackingStore = errors.New("store: nil backing store")
)
