package objcache

// Interest is a caller's declared intent about how likely it is to need
// an object again. It controls recency promotion and, on the [Cache]
// flavor, handle issuance.
type Interest uint8

const (
	// LikelyNeededAgain promotes the entry's recency. This is the default:
	// the zero Interest value.
	LikelyNeededAgain Interest = iota

	// UnlikelyNeededAgain leaves recency untouched on Get, so one-off
	// scans do not push hot entries toward eviction.
	UnlikelyNeededAgain

	// WantHandle promotes recency and additionally requests an interest
	// handle that pins the entry. On a [SimpleCache] it behaves like
	// LikelyNeededAgain.
	WantHandle
)

// String returns the constant name of the interest level.
func (i Interest) String() string {
	switch i {
	case LikelyNeededAgain:
		return "LikelyNeededAgain"
	case UnlikelyNeededAgain:
		return "UnlikelyNeededAgain"
	case WantHandle:
		return "WantHandle"
	default:
		return "Unknown"
	}
}
