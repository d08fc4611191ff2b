package store

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/objcache/model"
)

// PrefetchBlobs warms the caches with the given blobs, fetching misses with
// bounded concurrency (see WithPrefetchConcurrency).
//
// Prefetching shares the regular read path, so concurrent reads for the
// same ids piggyback on the prefetch's fetches rather than duplicating
// them. The first fetch error cancels the remaining work and is returned.
func (s *ObjectStore) PrefetchBlobs(ctx context.Context, ids []model.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}

	workers := s.prefetchWorkers
	switch {
	case workers == 0:
		workers = runtime.GOMAXPROCS(0)
	case workers < 0:
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.GetBlob(ctx, id)
			return err
		})
	}
	return g.Wait()
}
