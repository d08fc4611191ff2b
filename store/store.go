// Package store layers the in-memory object caches over a content-addressed
// object store.
//
// An [ObjectStore] serves blobs and trees to the filesystem layer above it.
// Reads go through an in-memory cache first, then an optional local on-disk
// store, and finally the authoritative backing store; objects fetched from
// the slower layers are written back to the faster ones. Concurrent misses
// for the same object are collapsed into a single fetch.
package store

import (
	"context"

	"github.com/meigma/objcache/model"
)

// BackingStore is the authoritative source of objects, typically remote.
//
// Unlike a cache lookup, a backing store fetch treats absence as an error:
// implementations report objects that do not exist with an error wrapping
// [ErrObjectNotFound].
type BackingStore interface {
	// FetchBlob retrieves the file blob identified by id.
	FetchBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error)

	// FetchTree retrieves the directory tree identified by id.
	FetchTree(ctx context.Context, id model.ObjectID) (*model.Tree, error)
}

// LocalStore is an optional on-disk layer between the in-memory caches and
// the backing store.
//
// The layer is opportunistic. A failed or absent read falls through to the
// backing store, and a failed write is logged and otherwise ignored, so a
// broken local store degrades performance but never correctness.
// Implementations must be safe for concurrent use.
type LocalStore interface {
	// GetBlob returns the stored blob for id, if present and intact.
	GetBlob(id model.ObjectID) (*model.Blob, bool)

	// PutBlob stores a blob for later GetBlob calls.
	PutBlob(b *model.Blob) error

	// GetTree returns the stored tree for id, if present and intact.
	GetTree(id model.ObjectID) (*model.Tree, bool)

	// PutTree stores a tree for later GetTree calls.
	PutTree(t *model.Tree) error
}
