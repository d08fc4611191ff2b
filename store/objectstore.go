package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/objcache"
	"github.com/meigma/objcache/model"
)

// Default cache bounds, applied when no limits option is given. These match
// the bounds the filesystem runtime ships with.
const (
	defaultMaximumSize  = 40 << 20 // 40 MiB per cache
	defaultMinimumCount = 16
)

// ObjectStore is the read surface the filesystem layer consumes.
//
// Each read goes: in-memory cache, then the local store (if configured),
// then the backing store. Objects found in a slower layer are inserted
// into the faster ones on the way back. Concurrent misses for the same id
// are deduplicated, so a miss storm costs one backing fetch.
//
// ObjectStore is safe for concurrent use.
type ObjectStore struct {
	backing BackingStore
	local   LocalStore
	blobs   *BlobCache
	trees   *TreeCache
	logger  *slog.Logger

	blobLimits      objcache.LimitsSource
	treeLimits      objcache.LimitsSource
	prefetchWorkers int

	blobFlights singleflight.Group
	treeFlights singleflight.Group

	localHits      atomic.Uint64
	localMisses    atomic.Uint64
	backingFetches atomic.Uint64
}

// Option configures an ObjectStore.
type Option func(*ObjectStore)

// WithLocalStore adds an on-disk layer consulted before the backing store
// and written through after backing fetches.
func WithLocalStore(local LocalStore) Option {
	return func(s *ObjectStore) {
		s.local = local
	}
}

// WithLogger sets a logger for the store. If nil, logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ObjectStore) {
		s.logger = logger
	}
}

// WithBlobCacheLimits bounds the in-memory blob cache. The source is
// re-read by the cache on every insert, so a reloadable configuration
// takes effect without store-side coordination.
func WithBlobCacheLimits(limits objcache.LimitsSource) Option {
	return func(s *ObjectStore) {
		s.blobLimits = limits
	}
}

// WithTreeCacheLimits bounds the in-memory tree cache.
func WithTreeCacheLimits(limits objcache.LimitsSource) Option {
	return func(s *ObjectStore) {
		s.treeLimits = limits
	}
}

// WithPrefetchConcurrency sets the number of workers used by PrefetchBlobs.
// Values < 0 force serial execution. Zero uses GOMAXPROCS. Values > 0 force
// a fixed worker count.
func WithPrefetchConcurrency(workers int) Option {
	return func(s *ObjectStore) {
		s.prefetchWorkers = workers
	}
}

// New creates an ObjectStore over the given backing store.
func New(backing BackingStore, opts ...Option) (*ObjectStore, error) {
	if backing == nil {
		return nil, ErrNilBackingStore
	}

	defaults := objcache.Limits{MaximumSize: defaultMaximumSize, MinimumCount: defaultMinimumCount}
	s := &ObjectStore{
		backing:    backing,
		blobLimits: defaults,
		treeLimits: defaults,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	var err error
	if s.blobs, err = NewBlobCache(s.blobLimits); err != nil {
		return nil, fmt.Errorf("blob cache: %w", err)
	}
	if s.trees, err = NewTreeCache(s.treeLimits); err != nil {
		return nil, fmt.Errorf("tree cache: %w", err)
	}
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *ObjectStore) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// GetBlob returns the blob identified by id, fetching it through the layer
// stack on a cache miss.
func (s *ObjectStore) GetBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	if blob, _, ok := s.blobs.Get(id, objcache.LikelyNeededAgain); ok {
		return blob, nil
	}
	return s.loadBlob(ctx, id)
}

// GetBlobHandle is GetBlob plus a pin: the returned handle keeps the blob
// usable for as long as the caller holds it, independent of cache eviction.
// The caller must release the handle when done with the blob.
func (s *ObjectStore) GetBlobHandle(ctx context.Context, id model.ObjectID) (*model.Blob, *BlobHandle, error) {
	if blob, handle, ok := s.blobs.Get(id, objcache.WantHandle); ok {
		return blob, handle, nil
	}

	blob, err := s.loadBlob(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	// The flight inserted the blob without a pin; re-acquire with handle
	// interest. If eviction already removed it (a cache smaller than this
	// one blob), reinsert pinned.
	if cached, handle, ok := s.blobs.Get(id, objcache.WantHandle); ok {
		return cached, handle, nil
	}
	handle := s.blobs.Insert(id, blob, objcache.WantHandle)
	return blob, handle, nil
}

// GetTree returns the tree identified by id, fetching it through the layer
// stack on a cache miss.
func (s *ObjectStore) GetTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	if tree, ok := s.trees.Get(id, objcache.LikelyNeededAgain); ok {
		return tree, nil
	}
	return s.loadTree(ctx, id)
}

// loadBlob fetches a blob through singleflight and caches the result.
func (s *ObjectStore) loadBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	v, err, _ := s.blobFlights.Do(string(id[:]), func() (any, error) {
		// Double-check: another flight may have just cached this id
		// between our miss and acquiring the flight.
		if blob, _, ok := s.blobs.Get(id, objcache.LikelyNeededAgain); ok {
			return blob, nil
		}

		blob, err := s.readThroughBlob(ctx, id)
		if err != nil {
			return nil, err
		}
		s.blobs.Insert(id, blob, objcache.LikelyNeededAgain)
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Blob), nil
}

// loadTree fetches a tree through singleflight and caches the result.
func (s *ObjectStore) loadTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	v, err, _ := s.treeFlights.Do(string(id[:]), func() (any, error) {
		if tree, ok := s.trees.Get(id, objcache.LikelyNeededAgain); ok {
			return tree, nil
		}

		tree, err := s.readThroughTree(ctx, id)
		if err != nil {
			return nil, err
		}
		s.trees.Insert(id, tree)
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Tree), nil
}

// readThroughBlob consults the local store, then the backing store,
// writing back to the local store on a backing hit.
func (s *ObjectStore) readThroughBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	if s.local != nil {
		if blob, ok := s.local.GetBlob(id); ok {
			s.localHits.Add(1)
			return blob, nil
		}
		s.localMisses.Add(1)
	}

	blob, err := s.backing.FetchBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", id.Short(), err)
	}
	s.backingFetches.Add(1)
	s.log().Debug("fetched blob from backing store", "id", id.Short(), "size", blob.Size())

	if s.local != nil {
		// Write-through is opportunistic; a full disk must not fail reads.
		if err := s.local.PutBlob(blob); err != nil {
			s.log().Warn("local blob write failed", "id", id.Short(), "error", err)
		}
	}
	return blob, nil
}

// readThroughTree is readThroughBlob for trees.
func (s *ObjectStore) readThroughTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	if s.local != nil {
		if tree, ok := s.local.GetTree(id); ok {
			s.localHits.Add(1)
			return tree, nil
		}
		s.localMisses.Add(1)
	}

	tree, err := s.backing.FetchTree(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch tree %s: %w", id.Short(), err)
	}
	s.backingFetches.Add(1)
	s.log().Debug("fetched tree from backing store", "id", id.Short(), "entries", tree.Len())

	if s.local != nil {
		if err := s.local.PutTree(tree); err != nil {
			s.log().Warn("local tree write failed", "id", id.Short(), "error", err)
		}
	}
	return tree, nil
}

// Stats is a point-in-time snapshot of the store's counters and the
// underlying caches' counters.
type Stats struct {
	// Blobs and Trees are the in-memory cache snapshots.
	Blobs objcache.Stats
	Trees objcache.Stats

	// LocalHits and LocalMisses count local store lookups on the miss
	// path. Both stay zero when no local store is configured.
	LocalHits   uint64
	LocalMisses uint64

	// BackingFetches counts successful backing store fetches.
	BackingFetches uint64
}

// Stats returns a snapshot of the store's counters.
func (s *ObjectStore) Stats() Stats {
	return Stats{
		Blobs:          s.blobs.Stats(),
		Trees:          s.trees.Stats(),
		LocalHits:      s.localHits.Load(),
		LocalMisses:    s.localMisses.Load(),
		BackingFetches: s.backingFetches.Load(),
	}
}
