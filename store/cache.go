package store

import (
	"github.com/meigma/objcache"
	"github.com/meigma/objcache/model"
)

// BlobCache is the in-memory cache for loaded file blobs, bounded by both a
// maximum total size and a minimum entry count.
//
// The minimum entry count exists to avoid reloading frequently-accessed
// large blobs: a blob bigger than the whole size budget would otherwise be
// evicted on every insert and fetched again on every read.
//
// Blob readers usually want objects to stay usable across a burst of
// related operations, so the blob cache is the interest-handle flavor: a
// [BlobHandle] pins a blob against eviction and keeps serving it even after
// the cache lets go.
type BlobCache = objcache.Cache[*model.Blob]

// BlobHandle pins a blob in the [BlobCache] and retains it independently of
// the cache's eviction decisions. After a fetch, prefer Get on a handle you
// already hold over a fresh cache lookup.
type BlobHandle = objcache.Handle[*model.Blob]

// TreeCache is the in-memory cache for loaded directory trees, with the
// same dual size/count bound as [BlobCache].
//
// Tree lookups are short-lived (resolve one name, move on), so the tree
// cache is the simple flavor: no handles, interest affects recency only.
type TreeCache = objcache.SimpleCache[*model.Tree]

// NewBlobCache creates a blob cache bounded by limits.
func NewBlobCache(limits objcache.LimitsSource) (*BlobCache, error) {
	return objcache.New[*model.Blob](limits)
}

// NewTreeCache creates a tree cache bounded by limits.
func NewTreeCache(limits objcache.LimitsSource) (*TreeCache, error) {
	return objcache.NewSimple[*model.Tree](limits)
}
