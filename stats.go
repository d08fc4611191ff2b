package objcache

// Stats is a point-in-time snapshot of a cache's counters. The counters
// are advisory telemetry, not part of the retention contract.
type Stats struct {
	// EntryCount is the number of entries currently present.
	EntryCount int

	// TotalWeight is the summed weight in bytes of present entries.
	TotalWeight uint64

	// Hits counts Get calls that found an entry.
	Hits uint64

	// Misses counts Get calls that found nothing.
	Misses uint64

	// Evictions counts entries removed by the retention policy. Explicit
	// Remove and Clear calls are not evictions.
	Evictions uint64

	// Inserts counts Insert calls, including same-id replacements.
	Inserts uint64
}
