package objcache

import "errors"

// Sentinel errors for cache construction.
//
// Normal operation has no recoverable errors: a miss is a value, and
// releasing a handle whose entry is gone is a no-op.
var (
	// ErrNilLimits is returned when a cache is constructed without a limits source.
	ErrNilLimits = errors.New("objcache: nil limits source")

	// ErrInvalidLimits is returned when a limits source yields unusable bounds at construction.
	ErrInvalidLimits = errors.New("objcache: invalid limits")
)
