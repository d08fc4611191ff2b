// Package objcache provides an in-memory cache for immutable,
// content-addressed objects: file blobs, directory trees, or anything else
// that can report a byte weight.
//
// The cache bounds memory with a dual policy. Eviction removes
// least-recently-used entries while the total weight exceeds MaximumSize,
// but never shrinks the cache below MinimumCount entries, and never evicts
// a pinned entry. Pins take priority over the count floor, which takes
// priority over the size bound, so the size bound is soft.
//
// Two flavors exist, chosen at construction time:
//
//   - [Cache] mints [Handle] values on request. A handle pins its entry
//     and holds its own reference to the object, so it keeps serving the
//     object even after the cache has evicted the entry.
//   - [SimpleCache] never mints handles; interest is advisory and affects
//     only recency.
//
// A miss is a value, not an error: Get reports absence with a false
// result.
//
// # Quick start
//
//	cache, err := objcache.New[*model.Blob](objcache.Limits{
//	    MaximumSize:  40 << 20,
//	    MinimumCount: 16,
//	})
//	if err != nil {
//	    return err
//	}
//
//	cache.Insert(blob.ID(), blob, objcache.LikelyNeededAgain)
//
//	if got, _, ok := cache.Get(blob.ID(), objcache.LikelyNeededAgain); ok {
//	    use(got)
//	}
//
// Callers that need an object to outlive the cache's retention decisions
// ask for a handle and release it when done:
//
//	_, handle, ok := cache.Get(id, objcache.WantHandle)
//	if ok {
//	    defer handle.Release()
//	    obj, _ := handle.Get()
//	    use(obj)
//	}
//
// All methods are safe for concurrent use. Every operation is a short
// critical section under one mutex; no I/O and no caller code runs while
// it is held.
package objcache
