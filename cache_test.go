package objcache

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/objcache/model"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("accepts fixed limits", func(t *testing.T) {
		t.Parallel()
		c, err := New[*testObject](Limits{MaximumSize: 100, MinimumCount: 1})
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Zero(t, c.Len())
		assert.Zero(t, c.TotalWeight())
	})

	t.Run("accepts a dynamic source", func(t *testing.T) {
		t.Parallel()
		c, err := New[*testObject](LimitsFunc(func() Limits {
			return Limits{MaximumSize: 100}
		}))
		require.NoError(t, err)
		require.NotNil(t, c)
	})

	t.Run("rejects nil source", func(t *testing.T) {
		t.Parallel()
		_, err := New[*testObject](nil)
		assert.ErrorIs(t, err, ErrNilLimits)
	})

	t.Run("rejects negative minimum count", func(t *testing.T) {
		t.Parallel()
		_, err := New[*testObject](Limits{MaximumSize: 100, MinimumCount: -1})
		assert.ErrorIs(t, err, ErrInvalidLimits)
	})
}

func TestInsertThenGet(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	obj := &testObject{name: "a", weight: 10}

	h := c.Insert(tid(1), obj, LikelyNeededAgain)
	assert.Nil(t, h, "non-handle interest mints no handle")

	got, handle, ok := c.Get(tid(1), LikelyNeededAgain)
	require.True(t, ok)
	assert.Same(t, obj, got)
	assert.Nil(t, handle)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, uint64(10), c.TotalWeight())
}

func TestGetMissIsNotAnError(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)

	got, handle, ok := c.Get(tid(9), LikelyNeededAgain)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Nil(t, handle)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Zero(t, stats.Hits)
}

func TestSizeBoundHoldsAfterEveryInsert(t *testing.T) {
	t.Parallel()

	const (
		maxSize  = 50
		minCount = 2
	)
	c := newTestCache(t, maxSize, minCount)

	rng := rand.New(rand.NewSource(7))
	for i := range 200 {
		w := uint64(rng.Intn(30) + 1)
		c.Insert(tid(byte(i)), &testObject{weight: w}, LikelyNeededAgain)

		// After any insert, either the size bound holds or the cache is at
		// its count floor.
		weight, count := c.TotalWeight(), c.Len()
		assert.True(t, weight <= maxSize || count <= minCount,
			"insert %d: weight=%d count=%d", i, weight, count)
	}
}

func TestCountFloorOverridesSizeBound(t *testing.T) {
	t.Parallel()

	// Every object alone exceeds the size bound, yet the floor keeps four.
	c := newTestCache(t, 10, 4)
	for i := range 10 {
		c.Insert(tid(byte(i)), &testObject{weight: 100}, LikelyNeededAgain)
	}

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, uint64(400), c.TotalWeight(), "floor entries may exceed the size bound")

	// The four survivors are the most recently inserted.
	for i := 6; i < 10; i++ {
		assert.True(t, c.Contains(tid(byte(i))), "object %d should remain", i)
	}
}

func TestLeastRecentlyUsedIsEvictedFirst(t *testing.T) {
	t.Parallel()

	// Room for exactly two unit-weight objects.
	c := newTestCache(t, 2, 0)
	c.Insert(tid('A'), &testObject{name: "A", weight: 1}, LikelyNeededAgain)
	c.Insert(tid('B'), &testObject{name: "B", weight: 1}, LikelyNeededAgain)

	// Promote A so B becomes least recently used.
	_, _, ok := c.Get(tid('A'), LikelyNeededAgain)
	require.True(t, ok)

	c.Insert(tid('C'), &testObject{name: "C", weight: 1}, LikelyNeededAgain)

	assert.False(t, c.Contains(tid('B')), "B was least recently used")
	assert.True(t, c.Contains(tid('A')))
	assert.True(t, c.Contains(tid('C')))
}

func TestUnlikelyNeededAgainDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2, 0)
	c.Insert(tid('A'), &testObject{weight: 1}, LikelyNeededAgain)
	c.Insert(tid('B'), &testObject{weight: 1}, LikelyNeededAgain)

	// A stays least recently used despite the lookup.
	_, _, ok := c.Get(tid('A'), UnlikelyNeededAgain)
	require.True(t, ok)

	c.Insert(tid('C'), &testObject{weight: 1}, LikelyNeededAgain)

	assert.False(t, c.Contains(tid('A')), "unpromoted A was least recently used")
	assert.True(t, c.Contains(tid('B')))
	assert.True(t, c.Contains(tid('C')))
}

// The worked example for the retention policy: maximumSize 10, minimumCount
// 1, three inserts of weight 4. The third insert pushes the total to 12, so
// the least recently used entry goes, and eviction stops because the bound
// is satisfied again, not because of the count floor.
func TestEvictionStopsOnceBoundSatisfied(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 10, 1)
	c.Insert(tid('X'), &testObject{name: "X", weight: 4}, LikelyNeededAgain)
	c.Insert(tid('Y'), &testObject{name: "Y", weight: 4}, LikelyNeededAgain)
	c.Insert(tid('Z'), &testObject{name: "Z", weight: 4}, LikelyNeededAgain)

	assert.False(t, c.Contains(tid('X')))
	assert.True(t, c.Contains(tid('Y')))
	assert.True(t, c.Contains(tid('Z')))
	assert.Equal(t, uint64(8), c.TotalWeight())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestPinnedEntrySurvivesEvictionPressure(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 10, 0)
	handle := c.Insert(tid('A'), &testObject{name: "A", weight: 4}, WantHandle)
	require.NotNil(t, handle)

	// Enough unpinned weight to force eviction well past A.
	for i := range 20 {
		c.Insert(tid(byte(i)), &testObject{weight: 4}, LikelyNeededAgain)
	}

	assert.True(t, c.Contains(tid('A')), "pinned entry must not be evicted")
	got, _, ok := c.Get(tid('A'), LikelyNeededAgain)
	require.True(t, ok)
	assert.Equal(t, "A", got.name)

	// Pins beat the size bound: A plus the newest unpinned entry.
	assert.LessOrEqual(t, c.TotalWeight(), uint64(8))
	handle.Release()
}

func TestEvictionScansPastPinnedEntries(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 8, 0)
	// A is the least recently used and pinned; B is next in line.
	handle := c.Insert(tid('A'), &testObject{weight: 4}, WantHandle)
	c.Insert(tid('B'), &testObject{weight: 4}, LikelyNeededAgain)

	// Over budget: eviction must skip pinned A and take B.
	c.Insert(tid('C'), &testObject{weight: 4}, LikelyNeededAgain)

	assert.True(t, c.Contains(tid('A')))
	assert.False(t, c.Contains(tid('B')))
	assert.True(t, c.Contains(tid('C')))
	handle.Release()
}

func TestOversizedInsertEvictsItself(t *testing.T) {
	t.Parallel()

	t.Run("unpinned insert above the bound vanishes", func(t *testing.T) {
		t.Parallel()
		c := newTestCache(t, 10, 0)
		c.Insert(tid('A'), &testObject{weight: 100}, LikelyNeededAgain)
		assert.False(t, c.Contains(tid('A')))
		assert.Zero(t, c.Len())
	})

	t.Run("pinned insert stays despite the bound", func(t *testing.T) {
		t.Parallel()
		c := newTestCache(t, 10, 0)
		h := c.Insert(tid('A'), &testObject{weight: 100}, WantHandle)
		assert.True(t, c.Contains(tid('A')))
		h.Release()
	})

	t.Run("count floor keeps an oversized insert", func(t *testing.T) {
		t.Parallel()
		c := newTestCache(t, 10, 1)
		c.Insert(tid('A'), &testObject{weight: 100}, LikelyNeededAgain)
		assert.True(t, c.Contains(tid('A')))
	})
}

func TestReplacementInsertIsNotAMerge(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	first := &testObject{name: "first", weight: 60}
	second := &testObject{name: "second", weight: 10}

	handle := c.Insert(tid(1), first, WantHandle)
	require.NotNil(t, handle)
	c.Insert(tid(1), second, LikelyNeededAgain)

	// Weight is replaced, not accumulated.
	assert.Equal(t, uint64(10), c.TotalWeight())
	assert.Equal(t, 1, c.Len())

	got, _, ok := c.Get(tid(1), LikelyNeededAgain)
	require.True(t, ok)
	assert.Equal(t, "second", got.name)

	// The replacement entry starts unpinned; the old handle's pin died
	// with the old entry, so eviction pressure removes it.
	c.Insert(tid(2), &testObject{weight: 95}, LikelyNeededAgain)
	assert.False(t, c.Contains(tid(1)), "replacement entry was unpinned")

	// The orphaned handle still serves the object it was minted for.
	old, ok := handle.Get()
	require.True(t, ok)
	assert.Equal(t, "first", old.name)
	handle.Release()
}

func TestRemove(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	c.Insert(tid(1), &testObject{weight: 10}, LikelyNeededAgain)

	assert.True(t, c.Remove(tid(1)))
	assert.False(t, c.Contains(tid(1)))
	assert.Zero(t, c.TotalWeight())
	assert.False(t, c.Remove(tid(1)), "second remove finds nothing")
}

func TestRemoveDetachesPins(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	handle := c.Insert(tid(1), &testObject{name: "pinned", weight: 10}, WantHandle)

	require.True(t, c.Remove(tid(1)))

	// The handle still serves, and its release is a quiet no-op.
	got, ok := handle.Get()
	require.True(t, ok)
	assert.Equal(t, "pinned", got.name)
	handle.Release()
}

func TestClear(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	for i := range 5 {
		c.Insert(tid(byte(i)), &testObject{weight: 10}, LikelyNeededAgain)
	}
	handle := c.Insert(tid(9), &testObject{name: "held", weight: 10}, WantHandle)

	c.Clear()

	assert.Zero(t, c.Len())
	assert.Zero(t, c.TotalWeight())
	got, ok := handle.Get()
	require.True(t, ok)
	assert.Equal(t, "held", got.name)
	handle.Release()
}

func TestContainsDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2, 0)
	c.Insert(tid('A'), &testObject{weight: 1}, LikelyNeededAgain)
	c.Insert(tid('B'), &testObject{weight: 1}, LikelyNeededAgain)

	require.True(t, c.Contains(tid('A')))
	c.Insert(tid('C'), &testObject{weight: 1}, LikelyNeededAgain)

	assert.False(t, c.Contains(tid('A')), "Contains must not refresh recency")

	stats := c.Stats()
	assert.Zero(t, stats.Hits, "Contains must not count as a hit")
}

func TestWeightSnapshotAtInsert(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100, 0)
	obj := &testObject{weight: 10}
	c.Insert(tid(1), obj, LikelyNeededAgain)

	// Accounting never re-reads Weight after insertion.
	obj.weight = 90
	assert.Equal(t, uint64(10), c.TotalWeight())

	require.True(t, c.Remove(tid(1)))
	assert.Zero(t, c.TotalWeight())
}

func TestLimitsReloadTakesEffectOnNextInsert(t *testing.T) {
	t.Parallel()

	var maxSize atomic.Uint64
	maxSize.Store(1000)
	c, err := New[*testObject](LimitsFunc(func() Limits {
		return Limits{MaximumSize: maxSize.Load()}
	}))
	require.NoError(t, err)

	for i := range 5 {
		c.Insert(tid(byte(i)), &testObject{weight: 100}, LikelyNeededAgain)
	}
	assert.Equal(t, 5, c.Len())

	// Shrinking the bound does nothing until cache activity re-reads it.
	maxSize.Store(150)
	assert.Equal(t, 5, c.Len())

	c.Insert(tid(9), &testObject{weight: 100}, LikelyNeededAgain)
	assert.LessOrEqual(t, c.TotalWeight(), uint64(150))
}

func TestNegativeMinimumCountFromReloadIsClamped(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	c, err := New[*testObject](LimitsFunc(func() Limits {
		if calls.Add(1) == 1 {
			return Limits{MaximumSize: 10, MinimumCount: 0}
		}
		// A misbehaving reloadable source after construction.
		return Limits{MaximumSize: 10, MinimumCount: -5}
	}))
	require.NoError(t, err)

	c.Insert(tid(1), &testObject{weight: 4}, LikelyNeededAgain)
	c.Insert(tid(2), &testObject{weight: 4}, LikelyNeededAgain)
	c.Insert(tid(3), &testObject{weight: 4}, LikelyNeededAgain)

	// Clamped to zero: plain size-bound eviction, no panic, no floor.
	assert.LessOrEqual(t, c.TotalWeight(), uint64(10))
}

func TestStatsCounters(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 10, 0)
	c.Insert(tid(1), &testObject{weight: 4}, LikelyNeededAgain)
	c.Insert(tid(2), &testObject{weight: 4}, LikelyNeededAgain)
	c.Insert(tid(3), &testObject{weight: 4}, LikelyNeededAgain) // evicts tid(1)

	c.Get(tid(2), LikelyNeededAgain)
	c.Get(tid(1), LikelyNeededAgain)
	c.Get(tid(9), LikelyNeededAgain)

	stats := c.Stats()
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, uint64(8), stats.TotalWeight)
	assert.Equal(t, uint64(3), stats.Inserts)
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestInterestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LikelyNeededAgain", LikelyNeededAgain.String())
	assert.Equal(t, "UnlikelyNeededAgain", UnlikelyNeededAgain.String())
	assert.Equal(t, "WantHandle", WantHandle.String())
	assert.Equal(t, "Unknown", Interest(42).String())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 8
		opsEach    = 2000
		idSpace    = 64
	)
	c := newTestCache(t, 500, 4)

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(g)))
			var held []*Handle[*testObject]
			for range opsEach {
				id := tid(byte(rng.Intn(idSpace)))
				switch rng.Intn(5) {
				case 0:
					c.Insert(id, &testObject{weight: uint64(rng.Intn(40) + 1)}, LikelyNeededAgain)
				case 1:
					if h := c.Insert(id, &testObject{weight: uint64(rng.Intn(40) + 1)}, WantHandle); h != nil {
						held = append(held, h)
					}
				case 2:
					if _, h, ok := c.Get(id, WantHandle); ok {
						held = append(held, h)
					}
				case 3:
					c.Get(id, LikelyNeededAgain)
				case 4:
					c.Remove(id)
				}
				if len(held) > 16 {
					held[0].Release()
					held = held[1:]
				}
			}
			for _, h := range held {
				h.Release()
			}
		}()
	}
	wg.Wait()

	assertLedgerConsistent(t, c.ledger)
}

// assertLedgerConsistent checks the accounting invariants directly: the
// recency list and the identity map track the same entries, and totalWeight
// is exactly the sum of entry weights.
func assertLedgerConsistent[V Weighted](t *testing.T, l *ledger[V]) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	require.Equal(t, l.recency.Len(), len(l.byID))
	var sum uint64
	for elem := l.recency.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[V])
		sum += e.weight
		mapped, ok := l.byID[e.id]
		require.True(t, ok, "listed entry %s missing from map", e.id.Short())
		require.Same(t, elem, mapped)
	}
	assert.Equal(t, sum, l.totalWeight)
}

// testObject is a minimal weighted payload. The cache never inspects
// contents, so tests pick identities and weights freely.
type testObject struct {
	name   string
	weight uint64
}

func (o *testObject) Weight() uint64 { return o.weight }

// tid builds a distinct ObjectID from a single byte.
func tid(b byte) model.ObjectID {
	return model.ObjectID{b}
}

func newTestCache(t *testing.T, maxSize uint64, minCount int) *Cache[*testObject] {
	t.Helper()
	c, err := New[*testObject](Limits{MaximumSize: maxSize, MinimumCount: minCount})
	require.NoError(t, err)
	return c
}
