package objcache

// Limits bounds a cache's retention.
//
// The two bounds interact: eviction only runs while the cache is over
// MaximumSize AND holds more than MinimumCount entries. A Limits value is
// itself a [LimitsSource], so fixed bounds can be passed directly to
// [New] and [NewSimple].
type Limits struct {
	// MaximumSize is the total object weight in bytes the cache tries to
	// stay under. The bound is soft: the MinimumCount floor and pinned
	// entries both take priority over it.
	MaximumSize uint64

	// MinimumCount is the number of entries retained even when their
	// total weight exceeds MaximumSize. A cold cache may exceed
	// MaximumSize only to honor this floor.
	MinimumCount int
}

// CacheLimits returns the limits themselves, making a fixed Limits value
// usable as a LimitsSource.
func (l Limits) CacheLimits() Limits {
	return l
}

// sanitize clamps bounds a reloadable source may hand us at runtime.
// Construction-time validation is stricter; see newLedger.
func (l Limits) sanitize() Limits {
	if l.MinimumCount < 0 {
		l.MinimumCount = 0
	}
	return l
}

// LimitsSource supplies retention bounds. The cache re-reads its source
// once per Insert, so a reloadable configuration takes effect on the next
// insert without any cache-side coordination; transient staleness is
// acceptable.
//
// CacheLimits is called with the cache lock held: implementations must be
// fast, must not block, and must not call back into the cache.
type LimitsSource interface {
	CacheLimits() Limits
}

// LimitsFunc adapts a function to the LimitsSource interface.
type LimitsFunc func() Limits

// CacheLimits calls f.
func (f LimitsFunc) CacheLimits() Limits {
	return f()
}

// Interface compliance.
var (
	_ LimitsSource = Limits{}
	_ LimitsSource = LimitsFunc(nil)
)
