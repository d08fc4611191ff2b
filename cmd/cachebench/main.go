// Command cachebench drives synthetic load through an ObjectStore and
// prints cache and store statistics. The backing store is an in-memory
// stand-in with configurable per-fetch latency, so runs measure cache
// behavior rather than network noise.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"

	"github.com/meigma/objcache"
	"github.com/meigma/objcache/config"
	"github.com/meigma/objcache/model"
	"github.com/meigma/objcache/store"
	"github.com/meigma/objcache/store/local"
)

type benchConfig struct {
	mode         string
	objects      int
	objectSize   int
	treeEntries  int
	workers      int
	duration     time.Duration
	iterations   int
	readRandom   bool
	fetchLatency time.Duration
	configPath   string
	maxSize      string
	minCount     int
	localDir     string
	prefetch     bool
	verbose      bool
	cpuProfile   string
	memProfile   string
	randomSeed   int64
}

//nolint:unused // sink variables prevent compiler optimizations under load
var (
	sinkBlob *model.Blob
	sinkTree *model.Tree
)

func main() {
	cfg := parseFlags()

	backing, blobIDs, treeIDs, err := newSynthBacking(cfg)
	if err != nil {
		log.Fatal(err)
	}

	opts, cleanup, err := storeOptions(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal here
	}

	objects, err := store.New(backing, opts...)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is fine, cleanup is best-effort
	}

	if cfg.prefetch {
		if err := objects.PrefetchBlobs(context.Background(), blobIDs); err != nil {
			log.Fatal(err)
		}
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	stats := runLoad(cfg, objects, blobIDs, treeIDs)

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	printStats(cfg, stats, objects, backing)
}

func parseFlags() benchConfig {
	var cfg benchConfig
	flag.StringVar(&cfg.mode, "mode", "get", "mode: get, handle, mixed, tree")
	flag.IntVar(&cfg.objects, "objects", 1024, "number of distinct objects")
	flag.IntVar(&cfg.objectSize, "object-size", 16<<10, "blob size in bytes")
	flag.IntVar(&cfg.treeEntries, "tree-entries", 16, "entries per tree (tree mode)")
	flag.IntVar(&cfg.workers, "workers", 4, "concurrent readers")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "total operations to run")
	flag.BoolVar(&cfg.readRandom, "read-random", true, "randomize object selection")
	flag.DurationVar(&cfg.fetchLatency, "fetch-latency", 0, "synthetic per-fetch backing store latency")
	flag.StringVar(&cfg.configPath, "config", "", "cache bounds config file (overrides -max-size/-min-count)")
	flag.StringVar(&cfg.maxSize, "max-size", "40MiB", "cache maximum size")
	flag.IntVar(&cfg.minCount, "min-count", 16, "cache minimum entry count")
	flag.StringVar(&cfg.localDir, "local-dir", "", "disk store tier directory (empty = none, \"auto\" = temp dir)")
	flag.BoolVar(&cfg.prefetch, "prefetch", false, "warm the cache with all objects before the run")
	flag.BoolVar(&cfg.verbose, "verbose", false, "log store activity to stderr")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()

	switch cfg.mode {
	case "get", "handle", "mixed", "tree":
	default:
		log.Fatalf("unknown mode: %s", cfg.mode)
	}
	return cfg
}

// storeOptions assembles the ObjectStore options from flags: cache bounds
// from a reloadable config file or from -max-size/-min-count, plus the
// optional disk tier and logging.
func storeOptions(cfg benchConfig) ([]store.Option, func() error, error) {
	var opts []store.Option

	if cfg.configPath != "" {
		reloadable, err := config.NewReloadable(cfg.configPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			store.WithBlobCacheLimits(reloadable.BlobCacheLimits()),
			store.WithTreeCacheLimits(reloadable.TreeCacheLimits()),
		)
	} else {
		maxBytes, err := units.RAMInBytes(cfg.maxSize)
		if err != nil {
			return nil, nil, fmt.Errorf("max-size: %w", err)
		}
		limits := objcache.Limits{MaximumSize: uint64(maxBytes), MinimumCount: cfg.minCount}
		opts = append(opts,
			store.WithBlobCacheLimits(limits),
			store.WithTreeCacheLimits(limits),
		)
	}

	opts = append(opts, store.WithPrefetchConcurrency(cfg.workers))

	if cfg.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, store.WithLogger(logger))
	}

	var cleanup func() error
	if cfg.localDir != "" {
		dir := cfg.localDir
		if dir == "auto" {
			tmp, err := os.MkdirTemp("", "cachebench-*")
			if err != nil {
				return nil, nil, err
			}
			dir = tmp
			cleanup = func() error { return os.RemoveAll(tmp) }
		}
		disk, err := local.New(dir)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, store.WithLocalStore(disk))
	}

	return opts, cleanup, nil
}

type loadStats struct {
	ops     int64
	bytes   int64
	errors  int64
	elapsed time.Duration
}

// runLoad runs the configured number of workers against the store until
// the iteration count or duration is exhausted.
func runLoad(cfg benchConfig, objects *store.ObjectStore, blobIDs, treeIDs []model.ObjectID) loadStats {
	var (
		ops       atomic.Int64
		byteCount atomic.Int64
		errCount  atomic.Int64
		remaining atomic.Int64
	)
	remaining.Store(int64(cfg.iterations))
	deadline := time.Now().Add(cfg.duration)
	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return remaining.Add(-1) >= 0
		}
		return time.Now().Before(deadline)
	}

	workers := cfg.workers
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(cfg.randomSeed + int64(w))) //nolint:gosec // intentional for reproducible benchmarks
			ctx := context.Background()
			i := 0
			for shouldContinue() {
				n, err := runOp(ctx, cfg, objects, blobIDs, treeIDs, rng, i)
				if err != nil {
					errCount.Add(1)
				} else {
					byteCount.Add(n)
				}
				ops.Add(1)
				i++
			}
		}()
	}
	wg.Wait()

	return loadStats{
		ops:     ops.Load(),
		bytes:   byteCount.Load(),
		errors:  errCount.Load(),
		elapsed: time.Since(start),
	}
}

func runOp(ctx context.Context, cfg benchConfig, objects *store.ObjectStore, blobIDs, treeIDs []model.ObjectID, rng *rand.Rand, i int) (int64, error) {
	switch cfg.mode {
	case "get":
		blob, err := objects.GetBlob(ctx, pickID(blobIDs, i, rng, cfg.readRandom))
		if err != nil {
			return 0, err
		}
		sinkBlob = blob
		return int64(blob.Size()), nil //nolint:gosec // sizes are flag-bounded

	case "handle":
		blob, handle, err := objects.GetBlobHandle(ctx, pickID(blobIDs, i, rng, cfg.readRandom))
		if err != nil {
			return 0, err
		}
		handle.Release()
		sinkBlob = blob
		return int64(blob.Size()), nil //nolint:gosec // sizes are flag-bounded

	case "mixed":
		// One pinned read per ten plain reads, roughly the shape a
		// filesystem layer produces.
		if rng.Intn(10) == 0 {
			blob, handle, err := objects.GetBlobHandle(ctx, pickID(blobIDs, i, rng, cfg.readRandom))
			if err != nil {
				return 0, err
			}
			handle.Release()
			sinkBlob = blob
			return int64(blob.Size()), nil //nolint:gosec // sizes are flag-bounded
		}
		blob, err := objects.GetBlob(ctx, pickID(blobIDs, i, rng, cfg.readRandom))
		if err != nil {
			return 0, err
		}
		sinkBlob = blob
		return int64(blob.Size()), nil //nolint:gosec // sizes are flag-bounded

	case "tree":
		tree, err := objects.GetTree(ctx, pickID(treeIDs, i, rng, cfg.readRandom))
		if err != nil {
			return 0, err
		}
		sinkTree = tree
		return int64(tree.Weight()), nil //nolint:gosec // weights are flag-bounded

	default:
		return 0, fmt.Errorf("unknown mode: %s", cfg.mode)
	}
}

func pickID(ids []model.ObjectID, idx int, rng *rand.Rand, random bool) model.ObjectID {
	if random {
		return ids[rng.Intn(len(ids))]
	}
	return ids[idx%len(ids)]
}

func printStats(cfg benchConfig, stats loadStats, objects *store.ObjectStore, backing *synthBacking) {
	fmt.Printf("mode=%s workers=%d ops=%d errors=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		cfg.workers,
		stats.ops,
		stats.errors,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)

	s := objects.Stats()
	fmt.Printf("blobs: entries=%d weight=%s hits=%d misses=%d evictions=%d inserts=%d\n",
		s.Blobs.EntryCount, units.BytesSize(float64(s.Blobs.TotalWeight)),
		s.Blobs.Hits, s.Blobs.Misses, s.Blobs.Evictions, s.Blobs.Inserts)
	fmt.Printf("trees: entries=%d weight=%s hits=%d misses=%d evictions=%d inserts=%d\n",
		s.Trees.EntryCount, units.BytesSize(float64(s.Trees.TotalWeight)),
		s.Trees.Hits, s.Trees.Misses, s.Trees.Evictions, s.Trees.Inserts)
	fmt.Printf("store: localHits=%d localMisses=%d backingFetches=%d synthetic=%d\n",
		s.LocalHits, s.LocalMisses, s.BackingFetches, backing.fetches.Load())
}

// synthBacking serves deterministic objects from memory with configurable
// per-fetch latency, standing in for a remote object store.
type synthBacking struct {
	blobs   map[model.ObjectID]*model.Blob
	trees   map[model.ObjectID]*model.Tree
	latency time.Duration
	fetches atomic.Uint64
}

func newSynthBacking(cfg benchConfig) (*synthBacking, []model.ObjectID, []model.ObjectID, error) {
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
	b := &synthBacking{
		blobs:   make(map[model.ObjectID]*model.Blob, cfg.objects),
		trees:   make(map[model.ObjectID]*model.Tree, cfg.objects),
		latency: cfg.fetchLatency,
	}

	blobIDs := make([]model.ObjectID, cfg.objects)
	for i := range cfg.objects {
		contents := make([]byte, cfg.objectSize)
		rng.Read(contents)
		blob := model.NewBlob(contents)
		b.blobs[blob.ID()] = blob
		blobIDs[i] = blob.ID()
	}

	treeIDs := make([]model.ObjectID, cfg.objects)
	for i := range cfg.objects {
		entries := make([]model.TreeEntry, cfg.treeEntries)
		for j := range entries {
			var id model.ObjectID
			rng.Read(id[:])
			entries[j] = model.TreeEntry{
				Name: fmt.Sprintf("entry%04d", j),
				ID:   id,
				Type: model.EntryTypeRegularFile,
			}
		}
		tree, err := model.NewTree(entries)
		if err != nil {
			return nil, nil, nil, err
		}
		b.trees[tree.ID()] = tree
		treeIDs[i] = tree.ID()
	}

	return b, blobIDs, treeIDs, nil
}

func (b *synthBacking) FetchBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	if err := b.simulateLatency(ctx); err != nil {
		return nil, err
	}
	b.fetches.Add(1)
	blob, ok := b.blobs[id]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return blob, nil
}

func (b *synthBacking) FetchTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	if err := b.simulateLatency(ctx); err != nil {
		return nil, err
	}
	b.fetches.Add(1)
	tree, ok := b.trees[id]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return tree, nil
}

func (b *synthBacking) simulateLatency(ctx context.Context) error {
	if b.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(b.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
